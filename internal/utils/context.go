package utils

import (
	"context"
)

type contextKey string

const ContextPushTokenKey contextKey = "pushToken"

func GetPushTokenFromContext(ctx context.Context) (string, bool) {
	token := ctx.Value(ContextPushTokenKey)
	tokenStr, ok := token.(string)
	return tokenStr, ok
}
