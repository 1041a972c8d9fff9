package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"notesync/models"
	"notesync/syncproto"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// decodeNote reads and validates a note body.
func decodeNote(ctx rweb.Context) (syncproto.Note, error) {
	var note syncproto.Note
	if err := json.Unmarshal(ctx.Request().Body(), &note); err != nil {
		return note, serr.Wrap(err, "invalid note JSON")
	}
	if err := note.Validate(); err != nil {
		return note, err
	}
	note.ColorCategory = note.ColorCategory.Normalize()
	return note, nil
}

// AddNote handles POST /notes/add/:user
func AddNote(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	note, err := decodeNote(ctx)
	if err != nil {
		return writeMsg(ctx, http.StatusBadRequest, err.Error())
	}

	err = models.Store().Insert(sctx, user, note)
	if errors.Is(err, models.ErrDuplicateNote) {
		return writeMsg(ctx, http.StatusConflict, err.Error())
	}
	if err != nil {
		logger.LogErr(err, "failed to add note", "user", user, "id", note.ID)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to add note")
	}

	logger.Info("Note added", "user", user, "id", note.ID)
	return writeMsg(ctx, http.StatusOK, syncproto.MsgOK)
}

// AddNotes handles POST /notes/addrange/:user
// Unordered bulk insert: invalid or duplicate notes are skipped and the
// rest are kept.
func AddNotes(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	var notes []syncproto.Note
	if err := json.Unmarshal(ctx.Request().Body(), &notes); err != nil {
		return writeMsg(ctx, http.StatusBadRequest, "invalid note list JSON")
	}

	valid := make([]syncproto.Note, 0, len(notes))
	for _, n := range notes {
		if err := n.Validate(); err != nil {
			logger.Info("Skipping invalid note in bulk add", "user", user, "id", n.ID, "reason", err.Error())
			continue
		}
		n.ColorCategory = n.ColorCategory.Normalize()
		valid = append(valid, n)
	}

	inserted, err := models.Store().InsertMany(sctx, user, valid)
	if err != nil {
		logger.LogErr(err, "bulk add failed", "user", user)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to add notes")
	}

	logger.Info("Notes added", "user", user, "requested", len(notes), "inserted", inserted)
	return writeJSON(ctx, http.StatusOK, syncproto.MsgResponse{Msg: syncproto.MsgOK, Inserted: &inserted})
}

// UpdateNote handles PUT /notes/update/:user
// The store only applies the body if it is newer than the stored copy.
// A tombstoned document answers DELETED so the client archives its copy.
func UpdateNote(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	note, err := decodeNote(ctx)
	if err != nil {
		return writeMsg(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := models.Store().UpdateIfNewer(sctx, user, note)
	if err != nil {
		logger.LogErr(err, "failed to update note", "user", user, "id", note.ID)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to update note")
	}

	logger.Debug("Note update", "user", user, "id", note.ID, "outcome", outcome.String())

	switch outcome {
	case models.UpdateDeleted:
		return writeMsg(ctx, http.StatusOK, syncproto.MsgDeleted)
	case models.UpdateNotFound:
		return writeMsg(ctx, http.StatusNotFound, syncproto.MsgNotFound)
	default:
		return writeMsg(ctx, http.StatusOK, syncproto.MsgOK)
	}
}

// DeleteNote handles DELETE /notes/delete/:user/:id
func DeleteNote(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()
	id := ctx.Request().Param("id")
	if id == "" {
		return writeMsg(ctx, http.StatusBadRequest, "note id is required")
	}

	if _, err := models.Store().SoftDelete(sctx, user, []string{id}); err != nil {
		logger.LogErr(err, "failed to delete note", "user", user, "id", id)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to delete note")
	}

	logger.Info("Note deleted", "user", user, "id", id)
	return writeMsg(ctx, http.StatusOK, syncproto.MsgOK)
}

// DeleteNotes handles POST /notes/delete/:user with an id list body
func DeleteNotes(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	var ids []string
	if err := json.Unmarshal(ctx.Request().Body(), &ids); err != nil {
		return writeMsg(ctx, http.StatusBadRequest, "invalid id list JSON")
	}

	n, err := models.Store().SoftDelete(sctx, user, ids)
	if err != nil {
		logger.LogErr(err, "failed to delete notes", "user", user)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to delete notes")
	}

	logger.Info("Notes deleted", "user", user, "requested", len(ids), "matched", n)
	return writeMsg(ctx, http.StatusOK, syncproto.MsgOK)
}

// RestoreNote handles PUT /notes/restore/:user/:id
func RestoreNote(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	note, err := decodeNote(ctx)
	if err != nil {
		return writeMsg(ctx, http.StatusBadRequest, err.Error())
	}
	if id := ctx.Request().Param("id"); id != note.ID {
		return writeMsg(ctx, http.StatusBadRequest, "path id does not match note id")
	}

	if err := models.Store().Restore(sctx, user, note); err != nil {
		logger.LogErr(err, "failed to restore note", "user", user, "id", note.ID)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to restore note")
	}

	logger.Info("Note restored", "user", user, "id", note.ID)
	return writeMsg(ctx, http.StatusOK, syncproto.MsgOK)
}

// noteView is a document as listed over the API.
type noteView struct {
	syncproto.Note
	Deleted bool `json:"deleted"`
}

func listNotes(ctx rweb.Context, includeDeleted bool) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()

	docs, err := models.Store().List(sctx, user, includeDeleted)
	if err != nil {
		logger.LogErr(err, "failed to list notes", "user", user)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to list notes")
	}

	out := make([]noteView, 0, len(docs))
	for _, d := range docs {
		out = append(out, noteView{Note: d.Note, Deleted: d.Deleted})
	}
	return writeJSON(ctx, http.StatusOK, out)
}

// ListAllNotes handles GET /notes/:user, tombstones included
func ListAllNotes(ctx rweb.Context) error {
	return listNotes(ctx, true)
}

// ListLiveNotes handles GET /notes/list/:user
func ListLiveNotes(ctx rweb.Context) error {
	return listNotes(ctx, false)
}
