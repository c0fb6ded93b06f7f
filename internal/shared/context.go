package shared

import "context"

// Scope identifies the outlet and acting user for a request. Authentication
// itself happens upstream; handlers only consume the resolved identity.
type Scope struct {
	OutletID int64
	ActorID  int64
}

type scopeContextKey struct{}

// ContextWithScope stores the request scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the request scope from context.
func ScopeFromContext(ctx context.Context) Scope {
	scope, _ := ctx.Value(scopeContextKey{}).(Scope)
	return scope
}
