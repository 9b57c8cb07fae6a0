// Interceptor chain and server-option assembly for the HubService gRPC
// server, grounded on coreengine/grpc/interceptors.go's LoggingInterceptor /
// ChainUnaryInterceptors / ServerOptions shape: a recovery interceptor
// outermost, a logging interceptor inside it, composed into the
// grpc.ServerOption list a *grpc.Server is built with.
package transport

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/observability"
)

// LoggingInterceptor logs method, duration and outcome for every unary
// call and records the meridian_grpc_requests_total /
// meridian_grpc_request_duration_seconds metrics.
func LoggingInterceptor(log corelog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := grpcCode(err)
		observability.RecordGRPCRequest(info.FullMethod, code.String(), elapsed.Seconds())
		if err != nil {
			log.Error(err, "grpc request failed", "method", info.FullMethod, "code", code.String(), "duration", elapsed)
		} else {
			log.Debug("grpc request", "method", info.FullMethod, "duration", elapsed)
		}
		return resp, err
	}
}

// RecoveryInterceptor converts a panic inside a handler into an Internal
// status instead of crashing the server process.
func RecoveryInterceptor(log corelog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(fmt.Errorf("%v", r), "grpc handler panic", "method", info.FullMethod)
				err = status.Errorf(codes.Internal, "panic in %s: %v", info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

// ChainUnaryInterceptors composes interceptors so the first listed runs
// outermost.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			next := chain
			interceptor := interceptors[i]
			chain = func(ctx context.Context, req any) (any, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chain(ctx, req)
	}
}

// ServerOptions builds the grpc.ServerOption list a HubService *grpc.Server
// should be constructed with: OpenTelemetry stats instrumentation plus the
// recovery/logging unary interceptor chain.
func ServerOptions(log corelog.Logger) []grpc.ServerOption {
	if log == nil {
		log = corelog.NewNoop()
	}
	return []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(ChainUnaryInterceptors(RecoveryInterceptor(log), LoggingInterceptor(log))),
	}
}
