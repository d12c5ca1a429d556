package gateway

import (
	"context"
	"net"
	"net/http"
)

type ctxKey string

const clientKeyCtx ctxKey = "clientKey"

func withClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyCtx, key)
}

// clientKeyFromRequest returns the rate-limit key of a request: the key set
// by middleware, else the host part of RemoteAddr.
func clientKeyFromRequest(r *http.Request) string {
	if value, ok := r.Context().Value(clientKeyCtx).(string); ok && value != "" {
		return value
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
