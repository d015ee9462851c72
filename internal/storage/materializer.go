package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediagen/internal/domain"
)

// Materializer persists finished artifacts under deterministic keys so that
// re-running the same job id overwrites the previous object instead of
// accumulating duplicates.
type Materializer struct {
	store ObjectStore
}

// NewMaterializer wraps the given object store.
func NewMaterializer(store ObjectStore) *Materializer {
	return &Materializer{store: store}
}

// Store uploads the artifact keyed by the job handle and returns the stable
// public locator.
func (m *Materializer) Store(ctx context.Context, artifact domain.Artifact, handle domain.JobHandle) (domain.StorageObject, error) {
	if m == nil || m.store == nil {
		return domain.StorageObject{}, errors.New("storage: no store configured")
	}
	if len(artifact.Data) == 0 {
		return domain.StorageObject{}, errors.New("storage: artifact is empty")
	}
	key := ObjectKey(handle, artifact.ContentType)
	if err := m.store.Upload(ctx, key, artifact.Data, artifact.ContentType); err != nil {
		return domain.StorageObject{}, err
	}
	return domain.StorageObject{
		Bucket: m.store.Bucket(),
		Key:    key,
		URL:    m.store.PublicURL(key),
	}, nil
}

// ObjectKey derives the storage key for a job handle. The key is a pure
// function of the handle, which makes materialization idempotent.
func ObjectKey(handle domain.JobHandle, contentType string) string {
	provider := slugify(handle.Provider)
	if provider == "" {
		provider = "unknown"
	}
	id := slugify(handle.ID)
	if id == "" {
		id = "artifact"
	}
	ext := extensionForMIME(contentType)
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("generated/%s/%s%s", provider, id, ext)
}

// slugify replaces path-unsafe characters so provider job ids can be used as
// key segments.
func slugify(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "text/plain", "text/plain; charset=utf-8":
		return ".txt"
	case "application/json":
		return ".json"
	default:
		return ""
	}
}
