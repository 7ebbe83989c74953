package sessions

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"mug-studio/core"
	"mug-studio/generate"
	"mug-studio/layers"
	"mug-studio/raster"
	"mug-studio/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// MaxUploadBytes bounds the body of an image upload.
const MaxUploadBytes = 20 << 20

type (
	Registry interface {
		Create() (*session.Session, error)
		Get(id string) (*session.Session, error)
		Close(id string) error
		IDs() []string
	}

	FontLister interface {
		Families() []string
	}

	CreateSessionResponse struct {
		ID      string       `json:"id"`
		Surface core.Surface `json:"surface"`
	}

	GenerateRequest struct {
		Prompt string `json:"prompt"`
	}

	PointRequest struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	SelectRequest struct {
		ID *string `json:"id"`
	}

	SelectionResponse struct {
		SelectedID *string `json:"selectedId"`
	}

	PointerResponse struct {
		SelectionResponse
		Mug session.MugPoint `json:"mug"`
	}

	CatalogResponse struct {
		Surface      core.Surface `json:"surface"`
		FontFamilies []string     `json:"fontFamilies"`
		Palette      []string     `json:"palette"`
		MaxUploadDim float64      `json:"maxUploadDim"`
		// InstalledFonts are the families the renderer has its own face
		// for, lower-cased.
		InstalledFonts []string `json:"installedFonts"`
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// renderLayerError maps a layer store error onto a response. A layer that
// no longer exists makes the command a no-op.
func renderLayerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, layers.ErrNotFound):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, layers.ErrTooSmall):
		renderError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, layers.ErrWrongKind), errors.Is(err, layers.ErrInvalidLayer), errors.Is(err, layers.ErrDuplicateID):
		renderError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, raster.ErrDecode):
		renderError(w, r, http.StatusUnsupportedMediaType, "Image could not be decoded")
	case errors.Is(err, session.ErrClosed):
		renderError(w, r, http.StatusGone, "Session is closed")
	default:
		logrus.WithError(err).Error("Layer command failed")
		renderError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// withSession resolves the {sessionId} URL parameter.
func withSession(reg Registry, fn func(w http.ResponseWriter, r *http.Request, s *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionId")
		s, err := reg.Get(id)
		if err != nil {
			logrus.WithField("session_id", id).Warn("Session not found")
			renderError(w, r, http.StatusNotFound, "Session not found")
			return
		}
		fn(w, r, s)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logrus.WithField("error", err).Warn("Failed to decode request")
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func renderLayer(w http.ResponseWriter, r *http.Request, s *session.Session, id string, status int) {
	l, ok := s.Layers().Get(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	render.Status(r, status)
	render.JSON(w, r, l)
}

func HandleCreateSession(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := reg.Create()
		if err != nil {
			logrus.WithError(err).Error("Failed to create session")
			renderError(w, r, http.StatusInternalServerError, "Failed to create session")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateSessionResponse{ID: s.ID, Surface: s.Surface})
	}
}

// HandleListSessions lists the open session ids, oldest first.
func HandleListSessions(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := reg.IDs()
		if ids == nil {
			ids = []string{}
		}
		render.JSON(w, r, ids)
	}
}

func HandleGetSession(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		render.JSON(w, r, s.State())
	})
}

func HandleDeleteSession(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Close(chi.URLParam(r, "sessionId")); err != nil {
			renderError(w, r, http.StatusNotFound, "Session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleAddText(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		l, err := s.AddText()
		if err != nil {
			renderLayerError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, l)
	})
}

// HandleAddImage accepts the image either as the raw request body or as the
// "file" field of a multipart form.
func HandleAddImage(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

		var data []byte
		var err error
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
			file, _, ferr := r.FormFile("file")
			if ferr != nil {
				renderError(w, r, http.StatusBadRequest, "Missing file field")
				return
			}
			defer file.Close()
			data, err = io.ReadAll(file)
		} else {
			data, err = io.ReadAll(r.Body)
		}
		if err != nil {
			logrus.WithField("error", err).Warn("Failed to read upload")
			renderError(w, r, http.StatusBadRequest, "Failed to read upload")
			return
		}
		if len(data) == 0 {
			renderError(w, r, http.StatusBadRequest, "Empty upload")
			return
		}

		l, err := s.AddImage(data)
		if err != nil {
			renderLayerError(w, r, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"session_id": s.ID,
			"layer_id":   l.ID,
			"bytes":      len(data),
		}).Info("Image uploaded")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, l)
	})
}

func HandleGenerate(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req GenerateRequest
		if !decode(w, r, &req) {
			return
		}

		l, err := s.Generate(r.Context(), req.Prompt)
		switch {
		case err == nil:
			render.Status(r, http.StatusCreated)
			render.JSON(w, r, l)
		case errors.Is(err, session.ErrEmptyPrompt):
			renderError(w, r, http.StatusBadRequest, "Prompt is required")
		case errors.Is(err, session.ErrBusy):
			renderError(w, r, http.StatusConflict, "A generation is already in progress")
		case errors.Is(err, session.ErrClosed):
			renderError(w, r, http.StatusGone, "Session is closed")
		case errors.Is(err, generate.ErrNotConfigured):
			renderError(w, r, http.StatusServiceUnavailable, "Image generation is not configured")
		case errors.Is(err, generate.ErrNoImage):
			renderError(w, r, http.StatusBadGateway, "No image was generated")
		default:
			logrus.WithError(err).WithField("session_id", s.ID).Error("Generation failed")
			renderError(w, r, http.StatusBadGateway, "No image was generated")
		}
	})
}

func HandlePatchLayer(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		id := chi.URLParam(r, "layerId")
		var p core.Patch
		if !decode(w, r, &p) {
			return
		}
		if err := s.Layers().Update(id, p); err != nil {
			renderLayerError(w, r, err)
			return
		}
		renderLayer(w, r, s, id, http.StatusOK)
	})
}

func HandleDragEnd(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		id := chi.URLParam(r, "layerId")
		var req PointRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.Layers().DragEnd(id, req.X, req.Y); err != nil {
			renderLayerError(w, r, err)
			return
		}
		renderLayer(w, r, s, id, http.StatusOK)
	})
}

func HandleTransformEnd(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		id := chi.URLParam(r, "layerId")
		var t core.Transform
		if !decode(w, r, &t) {
			return
		}
		if err := s.Layers().TransformEnd(id, t); err != nil {
			renderLayerError(w, r, err)
			return
		}
		renderLayer(w, r, s, id, http.StatusOK)
	})
}

func HandleDeleteLayer(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		if err := s.Layers().Delete(chi.URLParam(r, "layerId")); err != nil {
			renderLayerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// HandleDeleteSelection deletes the selected layer, if any.
func HandleDeleteSelection(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		s.Layers().DeleteSelected()
		w.WriteHeader(http.StatusNoContent)
	})
}

func selection(s *session.Session) SelectionResponse {
	if id := s.Layers().SelectedID(); id != "" {
		return SelectionResponse{SelectedID: &id}
	}
	return SelectionResponse{}
}

// HandlePutSelection selects the given layer; a null or unknown id clears
// the selection.
func HandlePutSelection(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req SelectRequest
		if !decode(w, r, &req) {
			return
		}
		if req.ID == nil {
			s.Layers().ClearSelection()
		} else {
			s.Layers().Select(*req.ID)
		}
		render.JSON(w, r, selection(s))
	})
}

// HandlePointer is a click at a design-surface point: it selects the
// topmost layer under it, or clears the selection on empty background. The
// response also says where the point lands on the mug.
func HandlePointer(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req PointRequest
		if !decode(w, r, &req) {
			return
		}
		s.Layers().PointerDown(req.X, req.Y)
		render.JSON(w, r, PointerResponse{
			SelectionResponse: selection(s),
			Mug:               s.Locate(req.X, req.Y),
		})
	})
}

func HandlePreview(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		data, err := s.Preview()
		if err != nil {
			if errors.Is(err, session.ErrNoPreview) {
				renderError(w, r, http.StatusNotFound, "No preview rendered yet")
				return
			}
			logrus.WithError(err).WithField("session_id", s.ID).Error("Failed to encode preview")
			renderError(w, r, http.StatusInternalServerError, "Failed to encode preview")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(data)
	})
}

func HandleMug(reg Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		render.JSON(w, r, s.Mug())
	})
}

func HandleCatalog(surface core.Surface, fonts FontLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, CatalogResponse{
			Surface:        surface,
			FontFamilies:   layers.FontFamilies,
			Palette:        layers.Palette,
			MaxUploadDim:   layers.MaxUploadDim,
			InstalledFonts: fonts.Families(),
		})
	}
}
