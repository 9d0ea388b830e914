package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/breakwater-io/breakwater/internal/breaker"
	"github.com/breakwater-io/breakwater/internal/ratelimit"
	"github.com/breakwater-io/breakwater/pkg/guard"
)

// GRPCConfig configures the gRPC client interceptors.
type GRPCConfig struct {
	// Registry holding the breaker/limiter for Name.
	Registry *guard.Registry

	// Name of the guarded dependency.
	Name string
}

// UnaryClientInterceptor returns a gRPC client interceptor that routes calls
// through the named dependency's limiter and breaker. Rejections become
// gRPC status errors so callers can distinguish "saturated"
// (ResourceExhausted) from "unhealthy" (Unavailable).
func UnaryClientInterceptor(config GRPCConfig) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		err := config.Registry.Call(config.Name, func() error {
			return invoker(ctx, method, req, reply, cc, opts...)
		})

		return translateRejection(err)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor with the
// same protection as UnaryClientInterceptor. Only stream establishment is
// guarded; messages on an open stream flow freely.
func StreamClientInterceptor(config GRPCConfig) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		var stream grpc.ClientStream

		err := config.Registry.Call(config.Name, func() error {
			var err error
			stream, err = streamer(ctx, desc, cc, method, opts...)
			return err
		})

		if err != nil {
			return nil, translateRejection(err)
		}
		return stream, nil
	}
}

// translateRejection maps breaker and limiter rejections to gRPC status
// errors. Operation errors pass through unchanged.
func translateRejection(err error) error {
	switch {
	case err == nil:
		return nil
	case breaker.IsOpen(err):
		return status.Error(codes.Unavailable, "circuit breaker is open")
	case ratelimit.IsLimited(err):
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	default:
		return err
	}
}
