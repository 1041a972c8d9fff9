package models

import (
	"database/sql"

	"github.com/rohanthewiz/serr"
)

// DDLCreateNotesTable holds one row per (user, note id). Rows are never
// removed by the API: deletes set the tombstone flag.
const DDLCreateNotesTable = `
CREATE TABLE IF NOT EXISTS notes (
    user_id         VARCHAR NOT NULL,
    guid            VARCHAR NOT NULL,
    title           VARCHAR,
    content         VARCHAR,
    color_category  VARCHAR DEFAULT 'Neutral',
    is_important    BOOLEAN DEFAULT false,
    changed_at      BIGINT NOT NULL,   -- epoch ms of the last accepted write
    attachment_file VARCHAR,
    deleted         BOOLEAN DEFAULT false,
    created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, guid)
);
`

// migrateDB runs all migrations on a single database
func migrateDB(db *sql.DB) error {
	if _, err := db.Exec(DDLCreateNotesTable); err != nil {
		return serr.Wrap(err, "failed to create notes table")
	}
	return nil
}
