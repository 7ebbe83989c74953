package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry holds the open sessions.
type Registry struct {
	mu        sync.RWMutex
	opts      Options
	sessions  map[string]*Session
	listeners []func(Event)
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// OnEvent registers fn for the events of every session, including those
// created later.
func (r *Registry) OnEvent(fn func(Event)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	existing := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		existing = append(existing, s)
	}
	r.mu.Unlock()

	for _, s := range existing {
		s.OnEvent(fn)
	}
}

func (r *Registry) Create() (*Session, error) {
	s, err := New(uuid.NewString(), r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, fn := range r.listeners {
		s.OnEvent(fn)
	}
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": s.ID,
		"sessions":   count,
	}).Info("Session created")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Close removes a session from the registry and closes it.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Close()
	logrus.WithField("session_id", id).Info("Session closed")
	return nil
}

// CloseAll closes every session; used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// IDs returns the ids of the open sessions, oldest first.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
