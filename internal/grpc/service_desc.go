package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stockcast.v1.ForecastService"

const (
	methodCreateProduct  = "CreateProduct"
	methodGetProduct     = "GetProduct"
	methodListProducts   = "ListProducts"
	methodRecordSale     = "RecordSale"
	methodForecast       = "Forecast"
	methodForecastSeries = "ForecastSeries"
	methodEvaluate       = "Evaluate"
)

// ForecastServiceServer is the server API for the forecast service. Requests
// and responses are google.protobuf.Struct messages with snake_case fields.
type ForecastServiceServer interface {
	CreateProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordSale(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Forecast(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForecastSeries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ForecastServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ForecastServiceDesc describes the service for grpc.Server.RegisterService.
var ForecastServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ForecastServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryDesc(methodCreateProduct, ForecastServiceServer.CreateProduct),
		unaryDesc(methodGetProduct, ForecastServiceServer.GetProduct),
		unaryDesc(methodListProducts, ForecastServiceServer.ListProducts),
		unaryDesc(methodRecordSale, ForecastServiceServer.RecordSale),
		unaryDesc(methodForecast, ForecastServiceServer.Forecast),
		unaryDesc(methodForecastSeries, ForecastServiceServer.ForecastSeries),
		unaryDesc(methodEvaluate, ForecastServiceServer.Evaluate),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockcast/v1/forecast.proto",
}

// RegisterForecastServiceServer registers srv with s.
func RegisterForecastServiceServer(s grpc.ServiceRegistrar, srv ForecastServiceServer) {
	s.RegisterService(&ForecastServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryDesc(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(ForecastServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
