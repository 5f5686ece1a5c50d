package auth

import "context"

type claimsKey struct{}

// WithClaims returns a context carrying the authenticated principal's claims
// (e.g. oids and groups) for the filter builder.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext retrieves the claims set by the authentication layer.
// Returns nil when the request is unauthenticated or access control is off.
func ClaimsFromContext(ctx context.Context) map[string]any {
	if claims, ok := ctx.Value(claimsKey{}).(map[string]any); ok {
		return claims
	}
	return nil
}
