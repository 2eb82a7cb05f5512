package auth

import "context"

type identityContextKey struct{}

// Identity identifies the authenticated caller of an A2A or Gateway request.
type Identity struct {
	Subject string
}

// WithIdentity attaches an identity to the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
