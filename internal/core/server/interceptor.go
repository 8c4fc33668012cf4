package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "groupstore_grpc_request_seconds",
	Help:    "gRPC request latency by method and status code",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "code"})

// timeoutInterceptor bounds every request by timeout.
func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// loggingInterceptor logs and times every request.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		requestDuration.WithLabelValues(info.FullMethod, code.String()).Observe(elapsed.Seconds())
		logger.Debug("request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration", elapsed)
		return resp, err
	}
}
