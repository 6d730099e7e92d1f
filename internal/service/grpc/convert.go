package grpcsvc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/service/reporting"
)

// request — чтение полей запроса с проверкой типов.
type request struct {
	fields map[string]*structpb.Value
}

func newRequest(in *structpb.Struct) request {
	return request{fields: in.GetFields()}
}

func (r request) has(name string) bool {
	v, ok := r.fields[name]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (r request) str(name string) (string, error) {
	if !r.has(name) {
		return "", nil
	}
	v, ok := r.fields[name].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", invalidField(name, "must be a string")
	}
	return v.StringValue, nil
}

func (r request) requiredStr(name string) (string, error) {
	s, err := r.str(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", invalidField(name, "is required")
	}
	return s, nil
}

func (r request) integer(name string) (int, error) {
	return valueInt(r.fields[name], name)
}

func (r request) boolean(name string) (bool, error) {
	if !r.has(name) {
		return false, nil
	}
	v, ok := r.fields[name].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, invalidField(name, "must be a boolean")
	}
	return v.BoolValue, nil
}

// money принимает число или строку ("10.00"), чтобы клиент мог избежать float.
func (r request) money(name string) (decimal.Decimal, error) {
	if !r.has(name) {
		return decimal.Zero, nil
	}
	switch v := r.fields[name].GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(v.NumberValue) || math.IsInf(v.NumberValue, 0) {
			return decimal.Zero, invalidField(name, "must be a finite number")
		}
		return decimal.NewFromFloat(v.NumberValue), nil
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(v.StringValue))
		if err != nil {
			return decimal.Zero, invalidField(name, "must be a decimal number")
		}
		return d, nil
	default:
		return decimal.Zero, invalidField(name, "must be a number")
	}
}

func valueInt(v *structpb.Value, name string) (int, error) {
	if v == nil {
		return 0, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, invalidField(name, "must be an integer")
		}
		return int(n), nil
	default:
		return 0, invalidField(name, "must be an integer")
	}
}

func (r request) items() ([]domain.OrderItem, error) {
	if !r.has("items") {
		return nil, nil
	}
	list, ok := r.fields["items"].GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, invalidField("items", "must be a list")
	}

	values := list.ListValue.GetValues()
	items := make([]domain.OrderItem, 0, len(values))
	for i, value := range values {
		obj, ok := value.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return nil, invalidField(domain.ItemField(i, ""), "must be an object")
		}
		line := newRequest(obj.StructValue)
		productID, err := line.str("product_id")
		if err != nil {
			return nil, invalidField(domain.ItemField(i, "product_id"), "must be a string")
		}
		qty, err := line.integer("quantity")
		if err != nil {
			return nil, invalidField(domain.ItemField(i, "quantity"), "must be an integer")
		}
		items = append(items, domain.OrderItem{ProductID: productID, Quantity: qty})
	}
	return items, nil
}

func invalidField(name, problem string) error {
	return status.Errorf(codes.InvalidArgument, "%s %s", strings.TrimSuffix(name, "."), problem)
}

// amount переводит сумму в число JSON с двумя знаками.
func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func productValue(p domain.Product) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"price":          amount(p.Price),
		"stock_quantity": p.StockQuantity,
		"is_available":   p.IsAvailable,
	}
}

func orderValue(o domain.Order) map[string]any {
	items := make([]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})
	}
	return map[string]any{
		"id":            o.ID,
		"customer_name": o.CustomerName,
		"items":         items,
		"total_amount":  amount(o.TotalAmount),
		"status":        string(o.Status),
		"created_at":    o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func timelineValue(events []domain.TimelineEvent) []any {
	out := make([]any, 0, len(events))
	for _, event := range events {
		entry := map[string]any{
			"type":     event.Type,
			"occurred": event.Occurred.UTC().Format(time.RFC3339Nano),
		}
		if event.Status != "" {
			entry["status"] = string(event.Status)
		}
		if event.Previous != "" {
			entry["previous_status"] = string(event.Previous)
		}
		if event.Reason != "" {
			entry["reason"] = event.Reason
		}
		out = append(out, entry)
	}
	return out
}

func violationsValue(violations domain.Violations) []any {
	out := make([]any, 0, len(violations))
	for _, v := range violations {
		entry := map[string]any{
			"field":   v.Field,
			"message": v.Error(),
		}
		if v.Line != domain.NoLine {
			entry["line"] = v.Line
		}
		if v.ProductID != "" {
			entry["product_id"] = v.ProductID
		}
		out = append(out, entry)
	}
	return out
}

func reportValue(r reporting.Report) map[string]any {
	products := func(list []domain.Product) []any {
		out := make([]any, 0, len(list))
		for _, p := range list {
			out = append(out, productValue(p))
		}
		return out
	}
	top := make([]any, 0, len(r.TopProducts))
	for _, p := range r.TopProducts {
		top = append(top, map[string]any{
			"product_id": p.ProductID,
			"product":    p.Name,
			"quantity":   p.Quantity,
		})
	}
	return map[string]any{
		"total_revenue":       amount(r.TotalRevenue),
		"average_order_value": amount(r.AverageOrderValue),
		"total_orders":        r.TotalOrders,
		"completed_orders":    r.CompletedOrders,
		"total_products":      r.TotalProducts,
		"low_stock":           products(r.LowStock),
		"out_of_stock":        products(r.OutOfStock),
		"top_products":        top,
	}
}

func stringList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return s, nil
}
