package utils

import (
	"context"

	"github.com/mmdatafocus/retail_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeySkipLedgerGuard = appctx.ContextKeySkipLedgerGuard
)

// Actor identifies who performed a mutation, for audit attribution.
type Actor struct {
	Id   string
	Name string
}

// SystemActor is used by jobs that run without a caller.
var SystemActor = Actor{Id: "system", Name: "System"}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetSkipLedgerGuardInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipLedgerGuard, skip)
}

// SetActorInContext stores both actor fields.
func SetActorInContext(ctx context.Context, actor Actor) context.Context {
	ctx = SetUserIdInContext(ctx, actor.Id)
	return SetUserNameInContext(ctx, actor.Name)
}

// RequireActor returns the authenticated actor or a validation error when none is present.
func RequireActor(ctx context.Context) (Actor, error) {
	id, ok := GetUserIdFromContext(ctx)
	if !ok || id == "" {
		return Actor{}, NewValidationError("actor identity is required", nil)
	}
	name, _ := GetUserNameFromContext(ctx)
	return Actor{Id: id, Name: name}, nil
}
