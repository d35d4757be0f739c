package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
)

// Store persists message attachments and returns the URL under which the
// stored file is served.
type Store interface {
	Save(name string, r io.Reader) (string, error)
}

var allowedExt = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// LocalStore writes attachments to a directory on local disk. Stored
// names are prefixed with a random id so uploads can never clobber each
// other, and the original name survives only as a sanitized suffix.
type LocalStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewLocalStore creates the upload directory if needed. maxSize is a
// human-readable limit such as "8MB"; empty means 8MB.
func NewLocalStore(dir, baseURL, maxSize string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("uploads: directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	if maxSize == "" {
		maxSize = "8MB"
	}
	max, err := humanize.ParseBytes(maxSize)
	if err != nil {
		return nil, fmt.Errorf("uploads: parse max size %q: %w", maxSize, err)
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: int64(max)}, nil
}

func (s *LocalStore) MaxBytes() int64 { return s.maxBytes }

// Save streams r to disk and returns the serving URL. Files with an
// extension outside the image allowlist, or larger than the configured
// limit, are rejected with ErrUploadFailed and nothing is left on disk.
func (s *LocalStore) Save(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExt[ext]; !ok {
		return "", fmt.Errorf("%w: extension %q not allowed", models.ErrUploadFailed, ext)
	}
	stored := uuid.NewString() + "-" + sanitize(filepath.Base(name))
	path := filepath.Join(s.dir, stored)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("exceeds %s", humanize.Bytes(uint64(s.maxBytes)))
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	url := s.baseURL + "/" + stored
	logger.Info("upload_saved", "name", stored, "bytes", n)
	return url, nil
}

// sanitize keeps the stored suffix safe for a URL path segment.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
