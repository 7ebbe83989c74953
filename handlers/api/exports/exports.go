package exports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mug-studio/core"
	"mug-studio/export"
	"mug-studio/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	SessionLookup interface {
		Get(id string) (*session.Session, error)
	}

	ExportResponse struct {
		ID        string          `json:"id"`
		SessionID string          `json:"sessionId"`
		Surface   core.Surface    `json:"surface"`
		Layers    json.RawMessage `json:"layers,omitempty"`
		CreatedAt time.Time       `json:"createdAt"`
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// HandleCreate renders the session's current layers into a print export.
func HandleCreate(sessions SessionLookup, store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")
		s, err := sessions.Get(sessionID)
		if err != nil {
			renderError(w, r, http.StatusNotFound, "Session not found")
			return
		}

		ls, _ := s.Layers().Snapshot()
		e, err := export.Build(s.ID, s.Surface, ls, s.Rasterizer())
		if err != nil {
			logrus.WithError(err).WithField("session_id", s.ID).Error("Failed to build export")
			renderError(w, r, http.StatusInternalServerError, "Failed to build export")
			return
		}
		if _, err := store.Create(r.Context(), e); err != nil {
			logrus.WithError(err).WithField("session_id", s.ID).Error("Failed to store export")
			renderError(w, r, http.StatusInternalServerError, "Failed to store export")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, e.Summary())
	}
}

func HandleList(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")
		exports, err := store.List(r.Context(), sessionID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"session_id": sessionID,
			}).Error("Failed to list exports")
			renderError(w, r, http.StatusInternalServerError, "Failed to list exports")
			return
		}
		if exports == nil {
			exports = []*core.Export{}
		}
		render.JSON(w, r, exports)
	}
}

// find loads the export named by the {exportId} URL parameter, writing the
// error response itself when it cannot.
func find(w http.ResponseWriter, r *http.Request, store core.ExportStore) (*core.Export, bool) {
	id := chi.URLParam(r, "exportId")
	e, err := store.FindID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrExportNotFound) {
			renderError(w, r, http.StatusNotFound, "Export not found")
			return nil, false
		}
		logrus.WithError(err).WithField("export_id", id).Error("Failed to get export")
		renderError(w, r, http.StatusInternalServerError, "Failed to get export")
		return nil, false
	}
	return e, true
}

func HandleGet(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := find(w, r, store)
		if !ok {
			return
		}
		render.JSON(w, r, ExportResponse{
			ID:        e.ID,
			SessionID: e.SessionID,
			Surface:   e.Surface,
			Layers:    json.RawMessage(e.Layers),
			CreatedAt: e.CreatedAt,
		})
	}
}

func HandleGetPreview(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := find(w, r, store)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(e.PreviewPNG)
	}
}

func HandleGetPrint(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := find(w, r, store)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mug-%s.pdf"`, e.ID))
		w.Write(e.PrintPDF)
	}
}

func HandleDelete(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "exportId")
		if err := store.Delete(r.Context(), id); err != nil {
			if errors.Is(err, core.ErrExportNotFound) {
				renderError(w, r, http.StatusNotFound, "Export not found")
				return
			}
			logrus.WithError(err).WithField("export_id", id).Error("Failed to delete export")
			renderError(w, r, http.StatusInternalServerError, "Failed to delete export")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
