package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC сервиса.
const ServiceName = "stockroom.v1.StockroomService"

// Методы сервиса. Запросы и ответы — google.protobuf.Struct с JSON-полями.
const (
	MethodListProducts   = "ListProducts"
	MethodGetProduct     = "GetProduct"
	MethodCreateProduct  = "CreateProduct"
	MethodUpdateProduct  = "UpdateProduct"
	MethodDeleteProduct  = "DeleteProduct"
	MethodListOrders     = "ListOrders"
	MethodGetOrder       = "GetOrder"
	MethodPlaceOrder     = "PlaceOrder"
	MethodSetOrderStatus = "SetOrderStatus"
	MethodGetReport      = "GetReport"
)

// FullMethod возвращает путь метода вида /stockroom.v1.StockroomService/PlaceOrder.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// StockroomServer — серверная часть StockroomService.
type StockroomServer interface {
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(StockroomServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	fullMethod := FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StockroomServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(StockroomServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// StockroomServiceDesc описывает сервис для grpc.Server.
var StockroomServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StockroomServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListProducts, StockroomServer.ListProducts),
		unary(MethodGetProduct, StockroomServer.GetProduct),
		unary(MethodCreateProduct, StockroomServer.CreateProduct),
		unary(MethodUpdateProduct, StockroomServer.UpdateProduct),
		unary(MethodDeleteProduct, StockroomServer.DeleteProduct),
		unary(MethodListOrders, StockroomServer.ListOrders),
		unary(MethodGetOrder, StockroomServer.GetOrder),
		unary(MethodPlaceOrder, StockroomServer.PlaceOrder),
		unary(MethodSetOrderStatus, StockroomServer.SetOrderStatus),
		unary(MethodGetReport, StockroomServer.GetReport),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockroom/v1/stockroom.proto",
}

// RegisterStockroomServer регистрирует реализацию на сервере.
func RegisterStockroomServer(registrar grpc.ServiceRegistrar, srv StockroomServer) {
	registrar.RegisterService(&StockroomServiceDesc, srv)
}

// Client — клиент StockroomService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient создаёт клиента поверх соединения.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call вызывает метод сервиса по короткому имени (MethodPlaceOrder и т.д.).
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
