package domain

import (
	"fmt"
	"strings"
)

// NoLine используется в Violation для ошибок уровня заказа, а не позиции.
const NoLine = -1

// Violation — одно замечание валидации заказа.
type Violation struct {
	// Field — имя поля формы: customer_name, items, items[i].product_id, items[i].quantity.
	Field     string
	Line      int
	ProductID string
	Err       error
	Message   string
}

// Error реализует error, чтобы Violation можно было оборачивать и сравнивать через errors.Is.
func (v Violation) Error() string {
	if v.Message != "" {
		return v.Message
	}
	if v.Err != nil {
		return v.Err.Error()
	}
	return "invalid order"
}

// Unwrap возвращает sentinel-ошибку замечания.
func (v Violation) Unwrap() error {
	return v.Err
}

// Violations — список замечаний, собранных без остановки на первом.
type Violations []Violation

// Messages возвращает человекочитаемые сообщения в порядке обнаружения.
func (vs Violations) Messages() []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Error())
	}
	return out
}

// Has проверяет, есть ли замечание с данной sentinel-ошибкой.
func (vs Violations) Has(target error) bool {
	for _, v := range vs {
		if v.Err == target {
			return true
		}
	}
	return false
}

// Err сворачивает список в одну ошибку или nil.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOrderRejected, strings.Join(vs.Messages(), "; "))
}

// ItemField форматирует имя поля позиции.
func ItemField(line int, field string) string {
	return fmt.Sprintf("items[%d].%s", line, field)
}
