package uploads

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestSaveStoresImage(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir, "static/", 1024, logger.NewNop())

	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 100)...)
	f, err := svc.Save(context.Background(), "u1", "fox.png", bytes.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, "image/png", f.ContentType)
	assert.True(t, strings.HasPrefix(f.URL, "/static/"))
	assert.True(t, strings.HasSuffix(f.Name, ".png"))
	assert.Equal(t, int64(len(body)), f.Size)

	stored, err := os.ReadFile(filepath.Join(dir, f.Name))
	require.NoError(t, err)
	assert.Equal(t, body, stored)
}

func TestSaveRejectsNonImages(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir, "", 0, logger.NewNop())

	_, err := svc.Save(context.Background(), "u1", "notes.txt", strings.NewReader("just some text"))
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.HTTPStatus(err))

	_, err = svc.Save(context.Background(), "u1", "empty.png", strings.NewReader(""))
	assert.Equal(t, 400, apperrors.HTTPStatus(err))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestSaveEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir, "", 64, logger.NewNop())

	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 200)...)
	_, err := svc.Save(context.Background(), "u1", "big.png", bytes.NewReader(body))
	require.Error(t, err)
	assert.Equal(t, 413, apperrors.HTTPStatus(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDefaults(t *testing.T) {
	svc := New("x", "", 0, nil)
	assert.Equal(t, "/uploads", svc.Prefix())
	assert.Equal(t, DefaultMaxBytes, svc.MaxBytes())
}
