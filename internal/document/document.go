// Package document validates and stores the supporting documents attached to claims.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/claims-management/internal"
)

// MaxSize is the default per-document limit (5 MiB).
const MaxSize int64 = 5 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Upload is a document received with a claim submission.
type Upload struct {
	Filename string
	Content  []byte
}

func (u Upload) Size() int64 {
	return int64(len(u.Content))
}

func (u Upload) Extension() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}

// Validate checks extension (case-insensitive) and size of every upload. Each
// offending file is named in its own field error.
func Validate(uploads []Upload, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = MaxSize
	}

	var errs []errors.ValidationError
	for _, up := range uploads {
		switch {
		case !allowedExtensions[up.Extension()]:
			errs = append(errs, errors.ValidationError{
				Field:   "documents",
				Message: fmt.Sprintf("%s: only pdf, docx and xlsx files are allowed", up.Filename),
				Code:    string(errors.ErrCodeInvalidDocument),
			})
		case up.Size() > maxSize:
			errs = append(errs, errors.ValidationError{
				Field:   "documents",
				Message: fmt.Sprintf("%s: file exceeds the %d MiB limit", up.Filename, maxSize>>20),
				Code:    string(errors.ErrCodeDocumentTooLarge),
			})
		}
	}

	if len(errs) > 0 {
		return errors.NewValidationErrors(errs)
	}
	return nil
}

// StoredName derives a unique file name that keeps the original name readable.
func StoredName(original string) string {
	base := filepath.Base(original)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_"), "_")
	if stem == "" {
		stem = "document"
	}
	return fmt.Sprintf("%s_%s%s", uuid.New().String(), stem, ext)
}

// LocalStore keeps documents in a directory on local disk.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create documents dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

// Save writes the upload under a fresh unique name and returns that name.
func (s *LocalStore) Save(ctx context.Context, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := StoredName(up.Filename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(up.Content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	s.logger.Debug("document stored", "original", up.Filename, "stored_as", name, "size", up.Size())
	return name, nil
}

// Remove deletes a stored document. Missing files are not an error.
func (s *LocalStore) Remove(ctx context.Context, name string) error {
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid document name %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
