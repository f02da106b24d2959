package domain

import (
	"io"
	"time"
)

// MaxDocumentSize is the upper bound for a stored knowledge document (1 MiB).
const MaxDocumentSize int64 = 1 << 20

var allowedExtensions = map[string]struct{}{
	"md":       {},
	"markdown": {},
	"html":     {},
	"htm":      {},
	"txt":      {},
}

// IsAllowedExtension reports whether ext (lowercase, without dot) may be uploaded.
func IsAllowedExtension(ext string) bool {
	_, ok := allowedExtensions[ext]
	return ok
}

type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UploadedFile is a client upload as received by a transport adapter.
// Size is the declared size; a negative value means unknown.
// Err is set when the transport failed to receive the file.
type UploadedFile struct {
	Filename  string
	MediaType string
	Size      int64
	Body      io.Reader
	Err       error
}
