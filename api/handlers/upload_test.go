package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mediastudio/api/dto"
	"mediastudio/api/storage"
)

func newUploadHandler(t *testing.T, maxBytes int64) (*UploadHandler, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewBlobStore(dir, maxBytes)
	require.NoError(t, err)
	return NewUploadHandler(store, zaptest.NewLogger(t)), dir
}

func TestUpload_StoresBlob(t *testing.T) {
	h, dir := newUploadHandler(t, 1<<20)

	payload := []byte("fake video bytes")
	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader(payload))
	req.Header.Set("x-filename", "Clip One.MP4")
	req.Header.Set("content-type", "video/mp4")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "/uploads/"+resp.ID+".mp4", resp.URL, "the stored name is the id plus a lowercased extension")

	stored, err := os.ReadFile(filepath.Join(dir, resp.ID+".mp4"))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestUpload_MissingFilename(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader([]byte("x")))
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_DeclaredLengthTooLarge(t *testing.T) {
	h, dir := newUploadHandler(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader(make([]byte, 100)))
	req.Header.Set("x-filename", "big.mp4")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assertDirEmpty(t, dir)
}

func TestUpload_StreamedOverLimitLeavesNothingBehind(t *testing.T) {
	h, dir := newUploadHandler(t, 10)

	// The declared length lies; only the streamed count catches it.
	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader(make([]byte, 100)))
	req.Header.Set("x-filename", "liar.mp4")
	req.ContentLength = 5
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assertDirEmpty(t, dir)
}

func TestUpload_SniffsContentTypeWhenMissing(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)

	payload := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)
	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader(payload))
	req.Header.Set("x-filename", "frame.png")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a rejected upload must not leave a partial blob")
}

func seedBlob(t *testing.T, h *UploadHandler, payload []byte) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader(payload))
	req.Header.Set("x-filename", "seed.bin")
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID + ".bin"
}

func fetchBlob(h *UploadHandler, name, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil)
	req.SetPathValue("name", name)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	h.Fetch(rec, req)
	return rec
}

func TestFetch_FullBody(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)
	name := seedBlob(t, h, []byte("0123456789"))

	rec := fetchBlob(h, name, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestFetch_SingleRange(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)
	name := seedBlob(t, h, []byte("0123456789"))

	rec := fetchBlob(h, name, "bytes=2-5")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "2345", rec.Body.String())
}

func TestFetch_OpenEndedAndSuffixRanges(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)
	name := seedBlob(t, h, []byte("0123456789"))

	rec := fetchBlob(h, name, "bytes=7-")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "789", rec.Body.String())

	rec = fetchBlob(h, name, "bytes=-3")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 7-9/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "789", rec.Body.String())
}

func TestFetch_UnsatisfiableRange(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)
	name := seedBlob(t, h, []byte("0123456789"))

	for _, header := range []string{"bytes=50-60", "bytes=2-5,7-9", "bytes=junk"} {
		rec := fetchBlob(h, name, header)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code, "range %q", header)
		assert.Equal(t, "bytes */10", rec.Header().Get("Content-Range"))
	}
}

func TestFetch_NotFound(t *testing.T) {
	h, _ := newUploadHandler(t, 1<<20)
	rec := fetchBlob(h, "nope.bin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
