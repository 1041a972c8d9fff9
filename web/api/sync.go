package api

import (
	"encoding/json"
	"net/http"

	"notesync/models"
	"notesync/syncproto"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// SyncNotes handles POST /notes/sync/:user
// Body is {data:[{id,date}]}; response is the four-bucket reconciliation
// diff against the user's documents, tombstones included.
func SyncNotes(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	var req syncproto.SyncRequest
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to decode sync manifest"), "invalid JSON", "user", user)
		return writeMsg(ctx, http.StatusBadRequest, "invalid sync manifest")
	}
	for _, item := range req.Data {
		if item.ID == "" {
			return writeMsg(ctx, http.StatusBadRequest, "manifest item id is required")
		}
	}

	res, err := models.ReconcileForUser(sctx, user, req.Data)
	if err != nil {
		logger.LogErr(err, "reconciliation failed", "user", user)
		return writeMsg(ctx, http.StatusInternalServerError, "reconciliation failed")
	}

	logger.Info("Sync reconciled",
		"user", user,
		"manifest", len(req.Data),
		"added", len(res.Added),
		"changed", len(res.Changed),
		"deleted", len(res.Deleted),
		"missing", len(res.MissingIDs),
	)
	return writeJSON(ctx, http.StatusOK, res)
}
