package ctxutil

import "context"

type sessionKey struct{}

// Session carries the caller's credentials so outbound collaborator calls can be
// made on the user's behalf.
type Session struct {
	Token   string
	Subject string
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func GetSession(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s
	}
	return nil
}

// Detach returns a context that keeps the session of parent but none of its
// deadline or cancellation. Background generations use it: they must outlive
// the request that started them.
func Detach(parent context.Context) context.Context {
	ctx := context.Background()
	if s := GetSession(parent); s != nil {
		cp := *s
		ctx = WithSession(ctx, &cp)
	}
	if td := GetTraceData(parent); td != nil {
		cp := *td
		ctx = WithTraceData(ctx, &cp)
	}
	return ctx
}
