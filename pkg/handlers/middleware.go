package handlers

import "net/http"

// Middleware wraps a single route handler (DB scope, actor resolution).
type Middleware func(http.HandlerFunc) http.HandlerFunc

// chain applies mws so that the first one runs outermost.
func chain(h http.HandlerFunc, mws ...Middleware) http.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
