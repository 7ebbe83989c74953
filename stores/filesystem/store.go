package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mug-studio/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const ext = ".json"

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Each export is one JSON
// file named after its ID.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// exportPath resolves the file of an export and refuses ids that would
// escape the base directory.
func (s *fsStore) exportPath(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("invalid export id %q", id)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	p := filepath.Join(absBase, id+ext)
	if !strings.HasPrefix(p, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return p, nil
}

func (s *fsStore) Create(ctx context.Context, export *core.Export) (string, error) {
	id := ulid.Make().String()
	filePath, err := s.exportPath(id)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{
		"export_id": id,
		"file_path": filePath,
	})
	log.Info("Creating new export")

	export.ID = id
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	data, err := json.Marshal(export)
	if err != nil {
		log.WithError(err).Error("Failed to marshal export")
		return "", err
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to create export")
		return "", err
	}

	log.Info("Export created successfully")
	return id, nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Export, error) {
	filePath, err := s.exportPath(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExportNotFound, err)
	}
	log := logrus.WithFields(logrus.Fields{"export_id": id, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Export with specified ID not found")
			return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		log.WithError(err).Error("Failed to retrieve export")
		return nil, err
	}

	var export core.Export
	if err := json.Unmarshal(data, &export); err != nil {
		log.WithError(err).Error("Failed to unmarshal export")
		return nil, err
	}
	log.Info("Export retrieved successfully")
	return &export, nil
}

func (s *fsStore) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "path": s.basePath})

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Export{}, nil
		}
		log.WithError(err).Error("Failed to read export directory")
		return nil, err
	}

	exports := make([]*core.Export, 0)
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ext {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read export file %s, skipping", file.Name())
			continue
		}
		var export core.Export
		if err := json.Unmarshal(data, &export); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal export file %s, skipping", file.Name())
			continue
		}
		if export.SessionID == sessionID {
			exports = append(exports, export.Summary())
		}
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].ID < exports[j].ID })

	log.Infof("Listed %d exports", len(exports))
	return exports, nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	filePath, err := s.exportPath(id)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrExportNotFound, err)
	}
	log := logrus.WithFields(logrus.Fields{"export_id": id, "file_path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Export file not found for deletion")
			return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		log.WithError(err).Error("Failed to delete export file")
		return err
	}

	log.Info("Export deleted successfully")
	return nil
}
