package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mug-studio/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps exports in process memory.
type memStore struct {
	mu      sync.RWMutex
	exports map[string]core.Export
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{exports: make(map[string]core.Export)}
}

func (s *memStore) Create(ctx context.Context, export *core.Export) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	export.ID = id
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	s.exports[id] = *export

	logrus.WithFields(logrus.Fields{
		"export_id":  id,
		"session_id": export.SessionID,
		"pdf_length": len(export.PrintPDF),
	}).Info("Export created successfully")
	return id, nil
}

func (s *memStore) FindID(ctx context.Context, id string) (*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("export_id", id)
	if val, ok := s.exports[id]; ok {
		log.Info("Export retrieved successfully")
		return &val, nil
	}
	log.Warn("Export with specified ID not found")
	return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
}

// List returns metadata for all exports of a session, oldest first.
func (s *memStore) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exports := make([]*core.Export, 0)
	for _, e := range s.exports {
		if e.SessionID == sessionID {
			exports = append(exports, e.Summary())
		}
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].ID < exports[j].ID })

	logrus.WithField("session_id", sessionID).Infof("Listed %d exports", len(exports))
	return exports, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("export_id", id)
	if _, ok := s.exports[id]; !ok {
		log.Warn("Export not found for deletion")
		return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
	}
	delete(s.exports, id)
	log.Info("Export deleted successfully")
	return nil
}
