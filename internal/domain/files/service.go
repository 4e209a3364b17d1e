package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/api/internal/platform/blobstore"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrNotOwner           = errors.New("file belongs to a different account")
	ErrContentTypeBlocked = errors.New("content type is not allowed")
)

type Service struct {
	repo   Repository
	blobs  blobstore.Store
	logger zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, logger: logger}
}

// Upload streams the content into the object store and records the
// metadata row. The store enforces the size cap; an oversized upload
// surfaces as blobstore.ErrFileTooLarge with nothing persisted.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, fileName, contentType string, content io.Reader) (*UserFile, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if !allowedContentTypes[contentType] {
		return nil, ErrContentTypeBlocked
	}

	id := uuid.New()
	key := fmt.Sprintf("files/%s/%s", ownerID, id)

	hasher := sha256.New()
	size, err := s.blobs.Put(ctx, key, contentType, io.TeeReader(content, hasher))
	if err != nil {
		return nil, err
	}

	f := &UserFile{
		ID:          id,
		OwnerID:     ownerID,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		ObjectKey:   key,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", key).Msg("orphaned object after failed metadata insert")
		}
		return nil, err
	}
	return f, nil
}

// Download returns the metadata row and a reader over the bytes. The
// caller must close the reader.
func (s *Service) Download(ctx context.Context, id, callerID uuid.UUID) (*UserFile, io.ReadCloser, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if f.OwnerID != callerID {
		return nil, nil, ErrNotOwner
	}
	rc, err := s.blobs.Get(ctx, f.ObjectKey)
	if errors.Is(err, blobstore.ErrObjectNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*UserFile, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Delete removes the row first, then the object. A failed object
// delete leaves an orphan in the store, logged rather than rolled back.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if f.OwnerID != callerID {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, f.ObjectKey); err != nil {
		s.logger.Error().Err(err).Str("key", f.ObjectKey).Msg("orphaned object after metadata delete")
	}
	return nil
}
