package web

import (
	"notesync/web/api"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes registers the sync API. Paths keep the legacy client's
// spelling, including "attachements".
func setupRoutes(s *rweb.Server) {
	s.Get("/health", api.Health)

	// Reconciliation
	s.Post("/notes/sync/:user", api.SyncNotes)

	// Note documents
	s.Post("/notes/add/:user", api.AddNote)
	s.Post("/notes/addrange/:user", api.AddNotes)
	s.Put("/notes/update/:user", api.UpdateNote)
	s.Delete("/notes/delete/:user/:id", api.DeleteNote)
	s.Post("/notes/delete/:user", api.DeleteNotes)
	s.Put("/notes/restore/:user/:id", api.RestoreNote)
	s.Get("/notes/list/:user", api.ListLiveNotes)
	s.Get("/notes/:user", api.ListAllNotes)

	// Attachments
	s.Get("/attachements/file/:user/:file", api.DownloadAttachment)
	s.Post("/attachements/file/:user/:file", api.UploadAttachment)
}
