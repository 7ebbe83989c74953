package core

import (
	"context"
	"errors"
	"time"
)

var ErrExportNotFound = errors.New("export not found")

type (
	// Export is a write-once print artifact of a design: the flattened
	// preview, a physical-size PDF and the layer description it came from.
	Export struct {
		ID         string    `json:"id"`
		SessionID  string    `json:"sessionId"`
		Surface    Surface   `json:"surface"`
		Layers     []byte    `json:"layers,omitempty"`     // JSON array of layers, omitted in list views.
		PreviewPNG []byte    `json:"previewPng,omitempty"` // omitted in list views.
		PrintPDF   []byte    `json:"printPdf,omitempty"`   // omitted in list views.
		CreatedAt  time.Time `json:"createdAt"`
	}

	// ExportStore persists print exports.
	ExportStore interface {
		// Create stores the export and returns its newly assigned ID.
		Create(ctx context.Context, export *Export) (string, error)

		// FindID returns the full export.
		FindID(ctx context.Context, id string) (*Export, error)

		// List returns metadata of every export of a session, without the
		// payload fields.
		List(ctx context.Context, sessionID string) ([]*Export, error)

		// Delete removes an export.
		Delete(ctx context.Context, id string) error
	}
)

// Summary returns a copy of e without payloads, suitable for list views.
func (e *Export) Summary() *Export {
	return &Export{
		ID:        e.ID,
		SessionID: e.SessionID,
		Surface:   e.Surface,
		CreatedAt: e.CreatedAt,
	}
}
