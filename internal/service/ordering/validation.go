package ordering

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// validate собирает все замечания по заказу, не останавливаясь на первом.
// Повторяющиеся товары расходуют один и тот же остаток: строка i проверяется
// против остатка за вычетом спроса предыдущих строк.
func validate(customerName string, items []domain.OrderItem, catalog map[string]domain.Product) domain.Violations {
	var violations domain.Violations

	if strings.TrimSpace(customerName) == "" {
		violations = append(violations, domain.Violation{
			Field:   "customer_name",
			Line:    domain.NoLine,
			Err:     domain.ErrCustomerRequired,
			Message: "Customer name cannot be empty",
		})
	}
	if len(items) == 0 {
		violations = append(violations, domain.Violation{
			Field:   "items",
			Line:    domain.NoLine,
			Err:     domain.ErrItemsRequired,
			Message: "Order must contain at least one item",
		})
		return violations
	}

	demand := make(map[string]int, len(items))
	for line, item := range items {
		malformed := false
		if strings.TrimSpace(item.ProductID) == "" {
			violations = append(violations, domain.Violation{
				Field:   domain.ItemField(line, "product_id"),
				Line:    line,
				Err:     domain.ErrProductRequired,
				Message: "Product must be selected",
			})
			malformed = true
		}
		if item.Quantity <= 0 {
			violations = append(violations, domain.Violation{
				Field:     domain.ItemField(line, "quantity"),
				Line:      line,
				ProductID: item.ProductID,
				Err:       domain.ErrItemQtyInvalid,
				Message:   "Quantity must be greater than 0",
			})
			malformed = true
		}
		if malformed {
			continue
		}

		product, ok := catalog[item.ProductID]
		if !ok {
			violations = append(violations, lineViolation(line, item, domain.ErrProductNotFound, "Product not found"))
			continue
		}
		if !product.IsAvailable {
			violations = append(violations, lineViolation(line, item, domain.ErrProductUnavailable,
				fmt.Sprintf("Product %q is not available", product.Name)))
			continue
		}

		available := product.StockQuantity - demand[item.ProductID]
		if available < item.Quantity {
			violations = append(violations, lineViolation(line, item, domain.ErrInsufficientStock,
				fmt.Sprintf("Not enough stock for %q. Available: %d, Requested: %d", product.Name, available, item.Quantity)))
			continue
		}
		demand[item.ProductID] += item.Quantity
	}

	return violations
}

func lineViolation(line int, item domain.OrderItem, err error, message string) domain.Violation {
	return domain.Violation{
		Field:     domain.ItemField(line, "product_id"),
		Line:      line,
		ProductID: item.ProductID,
		Err:       err,
		Message:   message,
	}
}

// rejectionReason даёт метке метрики стабильное значение.
func rejectionReason(violations domain.Violations) string {
	if len(violations) == 0 {
		return "unknown"
	}
	switch violations[0].Err {
	case domain.ErrCustomerRequired:
		return "customer_required"
	case domain.ErrItemsRequired:
		return "items_required"
	case domain.ErrProductRequired:
		return "product_required"
	case domain.ErrItemQtyInvalid:
		return "invalid_quantity"
	case domain.ErrProductNotFound:
		return "product_not_found"
	case domain.ErrProductUnavailable:
		return "product_unavailable"
	case domain.ErrInsufficientStock:
		return "insufficient_stock"
	default:
		return "other"
	}
}
