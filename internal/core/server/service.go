package server

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

/*
 * groupstore.v1.Storage service.
 *
 * Messages are google.protobuf.Struct in both directions, so the service
 * needs no generated code. Request fields:
 *   - store: storage name, empty for the default
 *   - group: record group name (required)
 *   - id: record ID, empty for collection pulls and pushes
 *   - query: raw query string for collection pulls
 *   - body: properties for Push and Update
 *   - attributes: runtime attributes substituted into storage configuration
 *
 * Response: {"payload": <value>} on OK. Every other outcome is a status
 * error; ValidationFailed and Forbidden attach the payload as a Struct detail.
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "groupstore.v1.Storage"

// StorageServer is the server API for the Storage service.
type StorageServer interface {
	Pull(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Push(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type endpointMethod func(*api.Endpoint, context.Context, api.Request) api.Response

func unaryHandler(name string, call func(StorageServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorageServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StorageServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// StorageServiceDesc describes the Storage service for grpc.Server.RegisterService.
var StorageServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorageServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Pull", StorageServer.Pull),
		unaryHandler("Push", StorageServer.Push),
		unaryHandler("Update", StorageServer.Update),
		unaryHandler("Delete", StorageServer.Delete),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "groupstore/v1/storage.proto",
}

// Handler implements StorageServer on top of api.Service.
type Handler struct {
	svc    *api.Service
	logger *slog.Logger
}

// NewHandler creates a handler for svc.
func NewHandler(svc *api.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Pull(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.call(ctx, in, (*api.Endpoint).Pull)
}

func (h *Handler) Push(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.call(ctx, in, (*api.Endpoint).Push)
}

func (h *Handler) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.call(ctx, in, (*api.Endpoint).Update)
}

func (h *Handler) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.call(ctx, in, (*api.Endpoint).Delete)
}

func (h *Handler) call(ctx context.Context, in *structpb.Struct, method endpointMethod) (*structpb.Struct, error) {
	fields := in.GetFields()

	name := fields["group"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "group is required")
	}

	ep, err := h.svc.Endpoint(ctx, fields["store"].GetStringValue(), name, attributes(fields["attributes"]))
	if err != nil {
		return nil, h.endpointError(err)
	}

	req := api.Request{
		ID:    fields["id"].GetStringValue(),
		Query: fields["query"].GetStringValue(),
	}
	if body := fields["body"].GetStructValue(); body != nil {
		req.Body = types.Record(body.AsMap())
	}

	return h.respond(method(ep, ctx, req))
}

// endpointError maps endpoint resolution failures to status codes.
func (h *Handler) endpointError(err error) error {
	switch {
	case errors.Is(err, group.ErrUnknownGroup),
		errors.Is(err, storage.ErrStoreNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrNoDefault):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		h.logger.Error("failed to resolve endpoint", "error", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	}
}

// respond maps an endpoint response to a message or status error.
func (h *Handler) respond(resp api.Response) (*structpb.Struct, error) {
	switch resp.Outcome {
	case api.OK:
		payload, err := toValue(resp.Payload)
		if err != nil {
			h.logger.Error("failed to encode response", "error", err)
			return nil, status.Error(codes.Internal, "failed to encode response")
		}
		return &structpb.Struct{Fields: map[string]*structpb.Value{"payload": payload}}, nil
	case api.NotFound:
		return nil, status.Error(codes.NotFound, "record not found")
	case api.Forbidden:
		return nil, withDetail(codes.PermissionDenied, "forbidden", "fields", resp.Payload)
	case api.ValidationFailed:
		return nil, withDetail(codes.InvalidArgument, "validation failed", "results", resp.Payload)
	case api.BadRequest:
		msg, _ := resp.Payload.(string)
		return nil, status.Error(codes.InvalidArgument, msg)
	case api.MethodNotAllowed:
		return nil, status.Error(codes.Unimplemented, "method not allowed")
	default:
		return nil, status.Error(codes.Internal, "internal error")
	}
}

// withDetail attaches payload under key as a Struct detail.
func withDetail(code codes.Code, msg, key string, payload any) error {
	st := status.New(code, msg)
	if payload == nil {
		return st.Err()
	}
	value, err := toValue(payload)
	if err != nil {
		return st.Err()
	}
	detailed, err := st.WithDetails(&structpb.Struct{Fields: map[string]*structpb.Value{key: value}})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// attributes converts a Struct of strings into runtime attributes.
func attributes(v *structpb.Value) types.Attributes {
	s := v.GetStructValue()
	if s == nil {
		return nil
	}
	out := make(types.Attributes, len(s.GetFields()))
	for k, field := range s.GetFields() {
		out[k] = field.GetStringValue()
	}
	return out
}
