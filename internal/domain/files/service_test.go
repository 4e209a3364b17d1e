package files

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/api/internal/platform/blobstore"
)

type mockRepo struct {
	store      map[uuid.UUID]*UserFile
	failCreate bool
}

func newMockRepo() *mockRepo { return &mockRepo{store: make(map[uuid.UUID]*UserFile)} }

func (m *mockRepo) Create(ctx context.Context, f *UserFile) error {
	if m.failCreate {
		return errors.New("injected insert failure")
	}
	f.UploadedAt = time.Now()
	m.store[f.ID] = f
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*UserFile, error) {
	f, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

func (m *mockRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*UserFile, int, error) {
	var items []*UserFile
	for _, f := range m.store {
		if f.OwnerID == ownerID {
			items = append(items, f)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func newTestService() (*Service, *mockRepo, *blobstore.MemoryStore) {
	repo := newMockRepo()
	blobs := blobstore.NewMemoryStore()
	return NewService(repo, blobs, zerolog.Nop()), repo, blobs
}

func TestUpload(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()
	content := []byte("hello, carelink")

	f, err := svc.Upload(context.Background(), owner, "note.txt", "text/plain", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if f.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", f.Size, len(content))
	}
	sum := sha256.Sum256(content)
	if f.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("hash mismatch")
	}
	if !strings.HasPrefix(f.ObjectKey, "files/"+owner.String()+"/") {
		t.Errorf("unexpected object key %s", f.ObjectKey)
	}
	if _, ok := repo.store[f.ID]; !ok {
		t.Error("metadata row not stored")
	}
}

func TestUpload_RejectsBlockedContentType(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Upload(context.Background(), uuid.New(), "app.exe", "application/x-msdownload", strings.NewReader("mz"))
	if !errors.Is(err, ErrContentTypeBlocked) {
		t.Errorf("expected ErrContentTypeBlocked, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("blocked upload left a row")
	}
}

func TestUpload_TooLarge(t *testing.T) {
	svc, repo, _ := newTestService()

	big := bytes.NewReader(make([]byte, blobstore.MaxFileSize+1))
	_, err := svc.Upload(context.Background(), uuid.New(), "big.pdf", "application/pdf", big)
	if !errors.Is(err, blobstore.ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("oversized upload left a row")
	}
}

func TestUpload_MetadataFailureCleansObject(t *testing.T) {
	svc, repo, blobs := newTestService()
	repo.failCreate = true

	_, err := svc.Upload(context.Background(), uuid.New(), "note.txt", "text/plain", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected Upload to fail")
	}
	if n := blobs.Len(); n != 0 {
		t.Errorf("expected object cleaned up, store holds %d", n)
	}
}

func TestDownload(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	f, err := svc.Upload(context.Background(), owner, "note.txt", "text/plain", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	meta, rc, err := svc.Download(context.Background(), f.ID, owner)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "payload" {
		t.Errorf("downloaded %q, want %q", got, "payload")
	}
	if meta.FileName != "note.txt" {
		t.Errorf("unexpected metadata %+v", meta)
	}

	if _, _, err := svc.Download(context.Background(), f.ID, uuid.New()); err != ErrNotOwner {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, _, err := svc.Download(context.Background(), uuid.New(), owner); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, repo, blobs := newTestService()
	owner := uuid.New()

	f, err := svc.Upload(context.Background(), owner, "note.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if err := svc.Delete(context.Background(), f.ID, uuid.New()); err != ErrNotOwner {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.Delete(context.Background(), f.ID, owner); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(repo.store) != 0 || blobs.Len() != 0 {
		t.Errorf("row or object survived delete")
	}
}
