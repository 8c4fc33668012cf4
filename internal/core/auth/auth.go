// Package auth provides API key authentication for gRPC services.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// clientKey is the context key for the authenticated client name.
const clientKey = contextKey("client")

// MetadataKey carries the API key on incoming requests.
const MetadataKey = "x-api-key"

// healthPrefix marks methods served without authentication.
const healthPrefix = "/grpc.health.v1."

// Authenticator validates API keys against configured clients.
// Keys are held only as HMAC-SHA256 digests under a per-process secret and
// compared in constant time.
type Authenticator struct {
	secret  []byte
	digests map[string][]byte
	logger  *slog.Logger
}

// NewAuthenticator creates an authenticator for keys, indexed by client name.
func NewAuthenticator(keys map[string]string, logger *slog.Logger) (*Authenticator, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	if logger == nil {
		logger = slog.Default()
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	a := &Authenticator{
		secret:  secret,
		digests: make(map[string][]byte, len(keys)),
		logger:  logger,
	}
	for client, key := range keys {
		a.digests[client] = a.digest(key)
	}
	return a, nil
}

func (a *Authenticator) digest(key string) []byte {
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(key))
	return h.Sum(nil)
}

// Authenticate returns the client name owning apiKey.
// Every digest is compared so timing does not depend on which client matched.
func (a *Authenticator) Authenticate(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrMissingKey
	}

	computed := a.digest(apiKey)
	client := ""
	for name, expected := range a.digests {
		if hmac.Equal(expected, computed) {
			client = name
		}
	}
	if client == "" {
		return "", ErrInvalidKey
	}
	return client, nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks pass through.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		client, err := a.Authenticate(apiKeys[0])
		if err != nil {
			a.logger.Debug("authentication failed", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx = context.WithValue(ctx, clientKey, client)
		return handler(ctx, req)
	}
}

// ClientFromContext extracts the authenticated client name from context.
// Returns empty string if not found.
func ClientFromContext(ctx context.Context) string {
	if client, ok := ctx.Value(clientKey).(string); ok {
		return client
	}
	return ""
}
