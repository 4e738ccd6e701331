package handler

import (
	"context"
	"errors"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/service"
)

const StockServiceName = "restaurant.stock.v1.StockService"

// StockServiceServer exchanges google.protobuf.Struct messages:
//
//	request:  {"items": [{"item_id": 1, "quantity": 2}, ...]}
//	response: {"ok": bool, "failing_item_id": n, "reason": "...", "state": "..."}
type StockServiceServer interface {
	CheckStock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReduceStock(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var StockServiceDesc = grpc.ServiceDesc{
	ServiceName: StockServiceName,
	HandlerType: (*StockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckStock", Handler: unaryHandler("CheckStock", StockServiceServer.CheckStock)},
		{MethodName: "ReduceStock", Handler: unaryHandler("ReduceStock", StockServiceServer.ReduceStock)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "restaurant/stock/v1/stock.proto",
}

func RegisterStockServiceServer(s grpc.ServiceRegistrar, srv StockServiceServer) {
	s.RegisterService(&StockServiceDesc, srv)
}

func unaryHandler(method string, call func(StockServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + StockServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StockServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StockServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	engine *service.StockEngine
}

func NewGRPCHandler(engine *service.StockEngine) *GRPCHandler {
	return &GRPCHandler{engine: engine}
}

func (h *GRPCHandler) CheckStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	batch, err := batchFromStruct(req)
	if err != nil {
		return nil, grpcError(err)
	}

	outcome, err := h.engine.Evaluate(ctx, batch)
	if err != nil {
		return nil, grpcError(err)
	}
	return outcomeToStruct(outcome)
}

// ReduceStock reports rejected and rolled back batches in the response body;
// only invalid input and storage failures become gRPC errors.
func (h *GRPCHandler) ReduceStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	batch, err := batchFromStruct(req)
	if err != nil {
		return nil, grpcError(err)
	}

	outcome, err := h.engine.Commit(ctx, batch)
	if err != nil {
		return nil, grpcError(err)
	}
	return outcomeToStruct(outcome)
}

func batchFromStruct(req *structpb.Struct) (domain.StockBatch, error) {
	raw := req.GetFields()["items"].GetListValue().GetValues()
	lines := make([]domain.StockLine, 0, len(raw))

	for _, v := range raw {
		fields := v.GetStructValue().GetFields()
		id, ok := wholeNumber(fields["item_id"])
		if !ok {
			return domain.StockBatch{}, domain.NewValidationError("items.item_id", "must be an integer")
		}
		qty, ok := wholeNumber(fields["quantity"])
		if !ok {
			return domain.StockBatch{}, domain.NewValidationError("items.quantity", "must be an integer")
		}
		lines = append(lines, domain.StockLine{ItemID: int64(id), Quantity: int(qty)})
	}
	return domain.NewStockBatch(lines...), nil
}

func wholeNumber(v *structpb.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, false
	}
	return n.NumberValue, true
}

func outcomeToStruct(o domain.StockOutcome) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"ok":    o.OK,
		"state": string(o.State),
	}
	if o.FailingItemID != nil {
		m["failing_item_id"] = float64(*o.FailingItemID)
	}
	if o.Reason != "" {
		m["reason"] = o.Reason
	}
	return structpb.NewStruct(m)
}

func grpcError(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, "storage unavailable")
	}
	return status.Error(codes.Internal, "internal error")
}
