package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"mug-studio/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	exportTableStmt := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		surface TEXT NOT NULL,
		layers BLOB,
		preview_png BLOB,
		print_pdf BLOB,
		created_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(exportTableStmt); err != nil {
		log.Fatalf("failed to create exports table: %v", err)
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS exports_session ON exports (session_id);`); err != nil {
		log.Fatalf("failed to create exports index: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, export *core.Export) (string, error) {
	id := ulid.Make().String()
	log := logrus.WithFields(logrus.Fields{
		"export_id":  id,
		"session_id": export.SessionID,
	})

	surface, err := json.Marshal(export.Surface)
	if err != nil {
		return "", err
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO exports (id, session_id, surface, layers, preview_png, print_pdf, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, export.SessionID, string(surface), export.Layers, export.PreviewPNG, export.PrintPDF, export.CreatedAt.UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to create export")
		return "", err
	}
	export.ID = id
	log.Info("Export created successfully")
	return id, nil
}

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Export, error) {
	log := logrus.WithField("export_id", id)
	log.Debug("Retrieving export by ID")

	export := core.Export{ID: id}
	var surface string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, surface, layers, preview_png, print_pdf, created_at FROM exports WHERE id = ?", id).
		Scan(&export.SessionID, &surface, &export.Layers, &export.PreviewPNG, &export.PrintPDF, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Export with specified ID not found")
			return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		log.WithError(err).Error("Failed to retrieve export")
		return nil, err
	}
	if err := json.Unmarshal([]byte(surface), &export.Surface); err != nil {
		return nil, fmt.Errorf("decode surface of export %s: %w", id, err)
	}
	export.CreatedAt = time.UnixMilli(createdAt)

	log.Info("Export retrieved successfully")
	return &export, nil
}

func (s *sqliteStore) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, surface, created_at FROM exports WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exports := make([]*core.Export, 0)
	for rows.Next() {
		export := core.Export{SessionID: sessionID}
		var surface string
		var createdAt int64
		if err := rows.Scan(&export.ID, &surface, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(surface), &export.Surface); err != nil {
			return nil, fmt.Errorf("decode surface of export %s: %w", export.ID, err)
		}
		export.CreatedAt = time.UnixMilli(createdAt)
		exports = append(exports, &export)
	}
	return exports, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM exports WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
	}
	logrus.WithField("export_id", id).Info("Export deleted successfully")
	return nil
}
