package service

import (
	"context"
	"strings"

	customError "github.com/segyhp/loan-engine/pkg/errors"
)

type identityKey struct{}

// WithIdentity attaches the acting user id to ctx.
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey{}, strings.TrimSpace(userID))
}

// IdentityFrom returns the acting user id carried by ctx.
func IdentityFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey{}).(string)
	return id, ok && id != ""
}

func requireActor(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", customError.WrapUnauthenticated()
	}
	return id, nil
}
