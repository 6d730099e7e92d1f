package grpcsvc

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/service/ordering"
	"github.com/vladislavdragonenkov/stockroom/internal/service/reporting"
	statussvc "github.com/vladislavdragonenkov/stockroom/internal/service/status"
)

// Service реализует StockroomServer поверх репозиториев и сервисов заказа.
type Service struct {
	products    domain.ProductRepository
	orders      domain.OrderRepository
	engine      *ordering.Engine
	statuses    *statussvc.Service
	reports     *reporting.Service
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
	now         func() time.Time
}

var _ StockroomServer = (*Service)(nil)

// Config содержит зависимости Service. Idempotency может быть nil.
type Config struct {
	Products    domain.ProductRepository
	Orders      domain.OrderRepository
	Engine      *ordering.Engine
	Statuses    *statussvc.Service
	Reports     *reporting.Service
	Idempotency domain.IdempotencyRepository
	Logger      *log.Entry
}

// NewService конструирует gRPC сервис.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New().WithField("component", "grpc-service")
	}
	reports := cfg.Reports
	if reports == nil {
		reports = reporting.NewService(cfg.Products, cfg.Orders)
	}
	return &Service{
		products:    cfg.Products,
		orders:      cfg.Orders,
		engine:      cfg.Engine,
		statuses:    cfg.Statuses,
		reports:     reports,
		idempotency: cfg.Idempotency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListProducts возвращает товары, query фильтрует по имени.
func (s *Service) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query, err := newRequest(req).str("query")
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx, domain.ListFilter{Query: query})
	if err != nil {
		return nil, s.toStatus(err, MethodListProducts)
	}
	list := make([]any, 0, len(products))
	for _, p := range products {
		list = append(list, productValue(p))
	}
	return toStruct(map[string]any{"products": list})
}

func (s *Service) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := newRequest(req).requiredStr("id")
	if err != nil {
		return nil, err
	}
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, MethodGetProduct)
	}
	return toStruct(map[string]any{"product": productValue(product)})
}

// CreateProduct создаёт товар. is_available по умолчанию true.
func (s *Service) CreateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	name, err := r.str("name")
	if err != nil {
		return nil, err
	}
	price, err := r.money("price")
	if err != nil {
		return nil, err
	}
	stock, err := r.integer("stock_quantity")
	if err != nil {
		return nil, err
	}
	available := true
	if r.has("is_available") {
		if available, err = r.boolean("is_available"); err != nil {
			return nil, err
		}
	}

	product, err := s.products.Create(ctx, domain.ProductInput{
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		IsAvailable:   available,
	})
	if err != nil {
		return nil, s.toStatus(err, MethodCreateProduct)
	}
	return toStruct(map[string]any{"product": productValue(product)})
}

// UpdateProduct применяет частичное обновление: отсутствующие поля не меняются.
func (s *Service) UpdateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	id, err := r.requiredStr("id")
	if err != nil {
		return nil, err
	}
	patch, err := productPatch(r)
	if err != nil {
		return nil, err
	}

	product, err := s.products.Update(ctx, id, patch)
	if err != nil {
		return nil, s.toStatus(err, MethodUpdateProduct)
	}
	return toStruct(map[string]any{"product": productValue(product)})
}

func productPatch(r request) (domain.ProductPatch, error) {
	var patch domain.ProductPatch
	if r.has("name") {
		name, err := r.str("name")
		if err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if r.has("price") {
		price, err := r.money("price")
		if err != nil {
			return patch, err
		}
		patch.Price = &price
	}
	if r.has("stock_quantity") {
		stock, err := r.integer("stock_quantity")
		if err != nil {
			return patch, err
		}
		patch.StockQuantity = &stock
	}
	if r.has("is_available") {
		available, err := r.boolean("is_available")
		if err != nil {
			return patch, err
		}
		patch.IsAvailable = &available
	}
	return patch, nil
}

// DeleteProduct удаляет товар. Отсутствующий товар — deleted=false, не ошибка.
func (s *Service) DeleteProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := newRequest(req).requiredStr("id")
	if err != nil {
		return nil, err
	}
	deleted, err := s.products.Delete(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, MethodDeleteProduct)
	}
	return toStruct(map[string]any{"deleted": deleted})
}

func (s *Service) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query, err := newRequest(req).str("query")
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, domain.ListFilter{Query: query})
	if err != nil {
		return nil, s.toStatus(err, MethodListOrders)
	}
	list := make([]any, 0, len(orders))
	for _, o := range orders {
		list = append(list, orderValue(o))
	}
	return toStruct(map[string]any{"orders": list})
}

// GetOrder возвращает заказ вместе с его timeline.
func (s *Service) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := newRequest(req).requiredStr("id")
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, MethodGetOrder)
	}
	events, err := s.statuses.Timeline(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, MethodGetOrder)
	}
	return toStruct(map[string]any{
		"order":    orderValue(order),
		"timeline": timelineValue(events),
	})
}

// PlaceOrder оформляет заказ. Отказ валидации возвращается в теле ответа
// (success=false, errors) со статусом OK.
func (s *Service) PlaceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	name, err := r.str("customer_name")
	if err != nil {
		return nil, err
	}
	items, err := r.items()
	if err != nil {
		return nil, err
	}

	return s.withIdempotency(ctx, FullMethod(MethodPlaceOrder), req, func(ctx context.Context) (*structpb.Struct, error) {
		placement, err := s.engine.PlaceOrder(ctx, name, items)
		if err != nil {
			return nil, s.toStatus(err, MethodPlaceOrder)
		}
		if !placement.Success() {
			return toStruct(map[string]any{
				"success":    false,
				"errors":     stringList(placement.Errors()),
				"violations": violationsValue(placement.Violations),
			})
		}
		return toStruct(map[string]any{
			"success": true,
			"order":   orderValue(*placement.Order),
		})
	})
}

// SetOrderStatus меняет статус заказа без побочных эффектов на остатки.
func (s *Service) SetOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	id, err := r.requiredStr("id")
	if err != nil {
		return nil, err
	}
	raw, err := r.requiredStr("status")
	if err != nil {
		return nil, err
	}
	next := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !next.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "status must be one of pending, completed, cancelled")
	}

	return s.withIdempotency(ctx, FullMethod(MethodSetOrderStatus), req, func(ctx context.Context) (*structpb.Struct, error) {
		order, err := s.statuses.SetStatus(ctx, id, next)
		if err != nil {
			return nil, s.toStatus(err, MethodSetOrderStatus)
		}
		return toStruct(map[string]any{"order": orderValue(order)})
	})
}

func (s *Service) GetReport(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report, err := s.reports.Report(ctx)
	if err != nil {
		return nil, s.toStatus(err, MethodGetReport)
	}
	return toStruct(reportValue(report))
}
