package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

// DefaultMaxBytes caps an upload when no limit is configured.
const DefaultMaxBytes int64 = 5 << 20

// sniffLen is how much of the head mimetype needs to decide.
const sniffLen = 3072

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// File describes a stored upload.
type File struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Service stores user images on local disk.
type Service struct {
	dir      string
	prefix   string
	maxBytes int64
	log      *logger.Logger
}

// New returns an upload service writing into dir and publishing files under
// prefix. The directory is created on demand.
func New(dir, prefix string, maxBytes int64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("uploads")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if prefix == "" {
		prefix = "/uploads"
	}
	return &Service{
		dir:      dir,
		prefix:   "/" + strings.Trim(prefix, "/"),
		maxBytes: maxBytes,
		log:      log,
	}
}

// Dir is the on-disk root.
func (s *Service) Dir() string { return s.dir }

// Prefix is the public URL prefix.
func (s *Service) Prefix() string { return s.prefix }

// MaxBytes is the per-file size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Save validates and stores an image uploaded by userID.
func (s *Service) Save(ctx context.Context, userID, filename string, r io.Reader) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return File{}, apperrors.Internal("read upload", err)
	}
	head = head[:n]
	if n == 0 {
		return File{}, apperrors.Validation("file is empty")
	}

	mt := mimetype.Detect(head)
	ext, ok := allowed[mt.String()]
	if !ok {
		return File{}, apperrors.InvalidFormat("file", fmt.Sprintf("unsupported content type %s", mt.String())).
			WithDetails("filename", filepath.Base(filename))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return File{}, apperrors.Internal("create upload dir", err)
	}
	name := uuid.NewString() + ext
	target := filepath.Join(s.dir, name)
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return File{}, apperrors.Internal("create upload file", err)
	}

	// one byte past the limit tells us the file was too large
	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return File{}, apperrors.Internal("write upload", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(target)
		return File{}, apperrors.PayloadTooLarge(s.maxBytes)
	}

	out := File{
		Name:        name,
		URL:         path.Join(s.prefix, name),
		ContentType: mt.String(),
		Size:        written,
	}
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"file":    name,
		"size":    written,
		"type":    out.ContentType,
	}).Info("upload stored")
	return out, nil
}
