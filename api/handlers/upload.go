package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediastudio/api/dto"
	"mediastudio/api/middleware"
	"mediastudio/api/storage"
	"mediastudio/api/validation"
)

type UploadHandler struct {
	store  *storage.BlobStore
	logger *zap.Logger
}

func NewUploadHandler(store *storage.BlobStore, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		store:  store,
		logger: logger,
	}
}

// Upload accepts a raw binary body described by the x-filename and
// content-type headers. The size ceiling is enforced twice: against the
// declared Content-Length up front, and against the streamed byte count
// inside the store, so a lying client cannot get a partial blob persisted.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	filename := r.Header.Get("x-filename")
	if filename == "" {
		respondError(w, r, h.logger, "x-filename header is required", nil, http.StatusBadRequest)
		return
	}

	if r.ContentLength > h.store.MaxBytes() {
		respondError(w, r, h.logger, "file too large", nil, http.StatusRequestEntityTooLarge)
		return
	}

	id := uuid.New().String()
	name := id + strings.ToLower(filepath.Ext(filename))

	body := bufio.NewReader(r.Body)
	contentType := r.Header.Get("content-type")
	if prefix, err := body.Peek(12); err == nil {
		if sniffed, ok := validation.Sniff(prefix); ok && contentType == "" {
			contentType = string(sniffed)
		}
	}

	size, err := h.store.Save(name, body)
	if err != nil {
		if errors.Is(err, storage.ErrBlobTooLarge) {
			respondError(w, r, h.logger, "file too large", err, http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, h.logger, "failed to save file", err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("blob stored",
		zap.String("trace_id", traceID),
		zap.String("blob_id", id),
		zap.String("filename", filename),
		zap.String("content_type", contentType),
		zap.Int64("size", size),
	)

	respondJSON(w, http.StatusCreated, dto.UploadResponse{
		ID:  id,
		URL: "/uploads/" + name,
	})
}

// Fetch serves a stored blob, honoring a single-range Range header with
// 206/416 semantics.
func (h *UploadHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		respondError(w, r, h.logger, "blob name is required", nil, http.StatusBadRequest)
		return
	}

	f, size, err := h.store.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			respondError(w, r, h.logger, "upload not found", err, http.StatusNotFound)
			return
		}
		respondError(w, r, h.logger, "failed to open upload", err, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - start + 1
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, f, length)
}

var errUnsatisfiableRange = errors.New("unsatisfiable range")

// parseRange understands a single bytes=start-end range. Multi-range
// requests are rejected as unsatisfiable rather than silently truncated.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errUnsatisfiableRange
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, 0, errUnsatisfiableRange
	}

	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix range: last N bytes.
		n, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, errUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, errUnsatisfiableRange
	}

	if endStr == "" {
		return start, size - 1, nil
	}

	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, errUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}

	return start, end, nil
}
