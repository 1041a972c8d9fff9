package models

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Server Configuration
//
// Loads server settings from NOTESYNC_* environment variables. The store
// backend, attachment backend and auth mode are all chosen here.
// ============================================================================

const (
	StoreDuckDB = "duckdb"
	StoreMongo  = "mongo"
)

// ServerConfig holds the sync server settings.
type ServerConfig struct {
	Addr          string // Listen address (NOTESYNC_ADDR)
	Store         string // duckdb | mongo (NOTESYNC_STORE)
	DBPath        string // DuckDB file (NOTESYNC_DB_PATH)
	MongoURI      string // NOTESYNC_MONGO_URI
	MongoDB       string // NOTESYNC_MONGO_DB
	AttachmentDir string // Disk attachment root (NOTESYNC_ATTACHMENT_DIR)

	S3Bucket    string // S3 attachments are used when set (NOTESYNC_S3_BUCKET)
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	AttachmentKey string // Encrypts blobs at rest when set (NOTESYNC_ATTACHMENT_KEY)

	JWTSecret   string // NOTESYNC_JWT_SECRET
	RequireAuth bool   // NOTESYNC_REQUIRE_AUTH
	LogLevel    string // NOTESYNC_LOG_LEVEL
}

// minSecretLength matches the HS256 key size.
const minSecretLength = 32

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// LoadServerConfig reads the server configuration from the environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Addr:          envOr("NOTESYNC_ADDR", ":8000"),
		Store:         strings.ToLower(envOr("NOTESYNC_STORE", StoreDuckDB)),
		DBPath:        envOr("NOTESYNC_DB_PATH", "./data/notes.ddb"),
		MongoURI:      os.Getenv("NOTESYNC_MONGO_URI"),
		MongoDB:       envOr("NOTESYNC_MONGO_DB", "notesync"),
		AttachmentDir: envOr("NOTESYNC_ATTACHMENT_DIR", "./data/attachments"),
		S3Bucket:      os.Getenv("NOTESYNC_S3_BUCKET"),
		S3Region:      envOr("NOTESYNC_S3_REGION", "us-east-1"),
		S3Endpoint:    os.Getenv("NOTESYNC_S3_ENDPOINT"),
		S3AccessKey:   os.Getenv("NOTESYNC_S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("NOTESYNC_S3_SECRET_KEY"),
		AttachmentKey: os.Getenv("NOTESYNC_ATTACHMENT_KEY"),
		JWTSecret:     os.Getenv("NOTESYNC_JWT_SECRET"),
		LogLevel:      envOr("NOTESYNC_LOG_LEVEL", "info"),
	}

	if v := os.Getenv("NOTESYNC_REQUIRE_AUTH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTESYNC_REQUIRE_AUTH value, expected true/false")
		}
		cfg.RequireAuth = b
	}

	return cfg, nil
}

// Validate fails fast on combinations the server cannot run with.
func (c *ServerConfig) Validate() error {
	switch c.Store {
	case StoreDuckDB:
		if c.DBPath == "" {
			return serr.New("NOTESYNC_DB_PATH is required for the duckdb store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return serr.New("NOTESYNC_MONGO_URI is required for the mongo store")
		}
	default:
		return serr.New("NOTESYNC_STORE must be duckdb or mongo")
	}

	if c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey == "" {
		return serr.New("NOTESYNC_S3_SECRET_KEY is required with NOTESYNC_S3_ACCESS_KEY")
	}

	if c.AttachmentKey != "" && len(c.AttachmentKey) != AttachmentKeyLength {
		return serr.New("NOTESYNC_ATTACHMENT_KEY must be exactly 32 characters")
	}

	if c.RequireAuth && len(c.JWTSecret) < minSecretLength {
		return serr.New("NOTESYNC_JWT_SECRET of at least 32 characters is required when auth is on")
	}
	return nil
}

// OpenBackends opens the configured note store and attachment store and
// installs them as the active ones.
func OpenBackends(ctx context.Context, cfg *ServerConfig) error {
	switch cfg.Store {
	case StoreMongo:
		if err := InitMongo(ctx, cfg.MongoURI, cfg.MongoDB); err != nil {
			return err
		}
	default:
		if err := InitDB(cfg.DBPath); err != nil {
			return err
		}
	}

	var (
		a       AttachmentStore
		backend string
	)
	if cfg.S3Bucket != "" {
		s3a, err := NewS3Attachments(ctx, cfg)
		if err != nil {
			return err
		}
		a, backend = s3a, "s3"
	} else {
		disk, err := NewDiskAttachments(cfg.AttachmentDir)
		if err != nil {
			return err
		}
		a, backend = disk, "disk"
	}

	if cfg.AttachmentKey != "" {
		sealed, err := SealAttachments(a, []byte(cfg.AttachmentKey))
		if err != nil {
			return err
		}
		a = sealed
	}

	attachments = a
	logger.Info("Attachment store opened", "backend", backend, "sealed", cfg.AttachmentKey != "")
	return nil
}
