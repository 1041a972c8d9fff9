package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// NewServer creates the sync server listening on addr
func NewServer(addr string) *rweb.Server {
	return NewTestServer(rweb.ServerOptions{
		Address: addr,
		Verbose: true,
	})
}

// NewTestServer builds the server from explicit options so tests can
// request a dynamic port and a ReadyChan.
func NewTestServer(opts rweb.ServerOptions) *rweb.Server {
	s := rweb.NewServer(opts)

	s.Use(rweb.RequestInfo)
	s.Use(CorsMiddleware)
	s.Use(SecurityHeadersMiddleware)
	s.Use(JWTAuthMiddleware)
	s.Use(LoggingMiddleware)

	setupRoutes(s)
	return s
}

// Run starts the server
func Run(s *rweb.Server, addr string) error {
	logger.Info("Notesync server starting on", "address", addr)
	return s.Run()
}
