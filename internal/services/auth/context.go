package auth

import (
	"context"
	"strings"
)

type ctxKey struct{}

// Identity is the authenticated caller. UserID is the lower-cased email.
type Identity struct {
	UserID string
	SID    string
	Role   string
}

// HasRole compares roles case-insensitively.
func (i Identity) HasRole(role string) bool {
	return strings.EqualFold(strings.TrimSpace(i.Role), strings.TrimSpace(role))
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(Identity)
	return identity, ok && identity.UserID != ""
}

// UserIDFromContext returns "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.UserID
}
