package gateway

import (
	"net/http"

	"github.com/petcuddles/pet-cuddles/internal/gateway/middleware"
)

// Router wraps http.ServeMux with helpers for the three access levels.
type Router struct {
	mux  *http.ServeMux
	auth *middleware.AuthMiddleWare
}

func NewRouter(auth *middleware.AuthMiddleWare) *Router {
	return &Router{
		mux:  http.NewServeMux(),
		auth: auth,
	}
}

// Mux returns the underlying http.ServeMux
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.mux.HandleFunc(pattern, handler)
}

// Protected registers a handler that requires a valid bearer token.
func (r *Router) Protected(pattern string, handler http.HandlerFunc) {
	r.mux.Handle(pattern, r.auth.RequireAuth(handler))
}

// WithRole registers a handler restricted to the given roles.
func (r *Router) WithRole(pattern string, handler http.HandlerFunc, roles ...string) {
	r.mux.Handle(pattern, r.auth.RequireAuth(r.auth.RequireRole(handler, roles...)))
}
