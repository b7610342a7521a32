package grpcserver

import (
	"context"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/sable-sync/internal/limiter"
)

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		// metadata only, never payloads
		log.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("bridge_method", bridgeMethod(req)),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary requires a valid "authorization: Bearer <JWT>" on every call except
// the health service. The token subject is stored with WithSubject. When lim is
// non-nil, peers that keep failing verification are rejected with ResourceExhausted.
func AuthUnary(v TokenVerifier, lim limiter.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if info.FullMethod == "/grpc.health.v1.Health/Check" {
			return next(ctx, req)
		}
		key := limiter.HashPeer(peerHost(ctx))
		if lim != nil {
			ok, retry, err := lim.Allow(ctx, key)
			if err != nil {
				return nil, status.Error(codes.Internal, "limiter")
			}
			if !ok {
				return nil, status.Errorf(codes.ResourceExhausted, "too many failed attempts, retry in %s", retry.Round(time.Second))
			}
		}
		tok, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		sub, err := v.Verify(tok)
		if err != nil {
			if lim != nil {
				if blocked, _, lerr := lim.Failure(ctx, key); lerr == nil && blocked {
					return nil, status.Error(codes.ResourceExhausted, "too many failed attempts")
				}
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		if lim != nil {
			_ = lim.Success(ctx, key)
		}
		return next(WithSubject(ctx, sub), req)
	}
}

// peerHost returns the caller's host without the ephemeral port.
func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func bridgeMethod(req any) string {
	if s, ok := req.(*structpb.Struct); ok {
		return s.GetFields()["method"].GetStringValue()
	}
	return ""
}
