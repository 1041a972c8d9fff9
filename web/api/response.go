package api

import (
	"context"
	"net/http"
	"time"

	"notesync/syncproto"

	"github.com/rohanthewiz/rweb"
)

// Context keys set by the web package's JWT middleware.
const (
	CtxSubject       = "auth_subject"
	CtxAuthenticated = "authenticated"
)

// storeTimeout bounds a single store or blob operation.
const storeTimeout = 10 * time.Second

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

var requireAuth bool

// SetRequireAuth turns per-user bearer token checks on or off.
func SetRequireAuth(on bool) {
	requireAuth = on
}

// writeMsg sends the {msg} envelope every mutating endpoint uses.
func writeMsg(ctx rweb.Context, status int, msg string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(syncproto.MsgResponse{Msg: msg})
}

func writeJSON(ctx rweb.Context, status int, data interface{}) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(data)
}

// pathUser returns the {user} path parameter after checking the caller may
// act for that user. On failure the response is already written and ok is
// false.
func pathUser(ctx rweb.Context) (user string, ok bool, err error) {
	user = ctx.Request().Param("user")
	if user == "" {
		return "", false, writeMsg(ctx, http.StatusBadRequest, "user is required")
	}
	if !requireAuth {
		return user, true, nil
	}

	if authed, _ := ctx.Get(CtxAuthenticated).(bool); !authed {
		return "", false, writeMsg(ctx, http.StatusUnauthorized, "authentication required")
	}
	if sub, _ := ctx.Get(CtxSubject).(string); sub != user {
		return "", false, writeMsg(ctx, http.StatusForbidden, "token does not match user")
	}
	return user, true, nil
}

// Health handles GET /health
func Health(ctx rweb.Context) error {
	return writeMsg(ctx, http.StatusOK, syncproto.MsgOK)
}
