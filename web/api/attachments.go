package api

import (
	"errors"
	"io"
	"net/http"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// maxAttachmentSize caps a single upload.
const maxAttachmentSize = 20 << 20

// UploadAttachment handles POST /attachements/file/:user/:file
// Expects a multipart form with the blob in the "file" field.
func UploadAttachment(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()
	name := ctx.Request().Param("file")
	if !models.ValidAttachmentName(name) {
		return writeMsg(ctx, http.StatusBadRequest, "invalid file name")
	}

	file, _, err := ctx.Request().GetFormFile("file")
	if err != nil {
		logger.LogErr(err, "failed to get uploaded file", "user", user, "file", name)
		return writeMsg(ctx, http.StatusBadRequest, "no file uploaded")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize+1))
	if err != nil {
		logger.LogErr(err, "failed to read uploaded file", "user", user, "file", name)
		return writeMsg(ctx, http.StatusBadRequest, "failed to read upload")
	}
	if len(data) > maxAttachmentSize {
		return writeMsg(ctx, http.StatusRequestEntityTooLarge, "attachment too large")
	}

	key, err := models.Attachments().Put(sctx, user, name, data)
	if err != nil {
		logger.LogErr(err, "failed to store attachment", "user", user, "file", name)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to store attachment")
	}

	logger.Info("Attachment stored", "user", user, "file", name, "bytes", len(data))
	return writeMsg(ctx, http.StatusOK, key)
}

// DownloadAttachment handles GET /attachements/file/:user/:file
func DownloadAttachment(ctx rweb.Context) error {
	user, ok, err := pathUser(ctx)
	if !ok {
		return err
	}
	sctx, cancel := storeCtx()
	defer cancel()
	name := ctx.Request().Param("file")
	if !models.ValidAttachmentName(name) {
		return writeMsg(ctx, http.StatusBadRequest, "invalid file name")
	}

	data, err := models.Attachments().Fetch(sctx, user, name)
	if errors.Is(err, models.ErrAttachmentNotFound) {
		return writeMsg(ctx, http.StatusNotFound, "attachment not found")
	}
	if err != nil {
		logger.LogErr(err, "failed to fetch attachment", "user", user, "file", name)
		return writeMsg(ctx, http.StatusInternalServerError, "failed to fetch attachment")
	}

	ctx.Response().SetHeader("Content-Type", http.DetectContentType(data))
	ctx.Response().SetHeader("Content-Disposition", "attachment; filename="+name)
	return ctx.Bytes(data)
}
