package files

import (
	"time"

	"github.com/google/uuid"
)

// UserFile is the metadata row for an uploaded file. The bytes live in
// the object store under ObjectKey; the row holds only the reference.
type UserFile struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	ObjectKey   string    `json:"-" db:"object_key"`
	Hash        string    `json:"hash" db:"hash"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}

var allowedContentTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"text/csv":           true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}
