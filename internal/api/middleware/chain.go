package middleware

import "net/http"

// Middleware wraps a handler with a step that may stop the request or pass
// it on to next.
type Middleware func(next http.HandlerFunc) http.HandlerFunc

// Chain composes middlewares around handler. The first middleware listed is
// the first to see the request.
func Chain(handler http.HandlerFunc, middlewares ...Middleware) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
