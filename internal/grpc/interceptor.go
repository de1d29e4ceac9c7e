package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every unary call with its status code and duration.
type LoggingInterceptor struct {
	logger *logrus.Logger
	quiet  map[string]struct{}
}

// InterceptorOption customizes the interceptor behaviour.
type InterceptorOption func(*LoggingInterceptor)

// WithQuietMethods registers fully qualified method names that are only
// logged at debug level on success.
func WithQuietMethods(methods ...string) InterceptorOption {
	return func(i *LoggingInterceptor) {
		for _, m := range methods {
			if strings.TrimSpace(m) == "" {
				continue
			}
			i.quiet[m] = struct{}{}
		}
	}
}

// NewLoggingInterceptor constructs a request logging interceptor.
func NewLoggingInterceptor(logger *logrus.Logger, opts ...InterceptorOption) *LoggingInterceptor {
	if logger == nil {
		logger = logrus.New()
	}

	i := &LoggingInterceptor{
		logger: logger,
		quiet:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Unary returns a unary server interceptor.
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := i.invoke(ctx, req, info, handler)

		code := status.Code(err)
		entry := i.logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     code.String(),
			"duration": time.Since(start),
		})

		switch code {
		case codes.OK:
			if _, ok := i.quiet[info.FullMethod]; ok {
				entry.Debug("request handled")
			} else {
				entry.Info("request handled")
			}
		case codes.Internal, codes.Unknown:
			entry.WithError(err).Error("request failed")
		default:
			entry.WithError(err).Warn("request rejected")
		}
		return resp, err
	}
}

// invoke runs handler and turns a panic into an Internal status.
func (i *LoggingInterceptor) invoke(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"panic":  r,
			}).Error("handler panicked")
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
