package ordering

import "github.com/vladislavdragonenkov/stockroom/internal/domain"

// Placement — результат PlaceOrder: либо созданный заказ, либо список замечаний.
type Placement struct {
	Order      *domain.Order
	Violations domain.Violations
}

// Success сообщает, что заказ создан.
func (p Placement) Success() bool {
	return p.Order != nil && len(p.Violations) == 0
}

// Errors возвращает сообщения для отображения по строкам формы.
func (p Placement) Errors() []string {
	return p.Violations.Messages()
}

func rejected(violations domain.Violations) Placement {
	return Placement{Violations: violations}
}
