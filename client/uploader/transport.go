package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// UploadResult is the storage service's answer for a stored blob.
type UploadResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// BlobMeta describes the payload being sent.
type BlobMeta struct {
	Name string
	MIME string
	Size int64
}

// Transport sends one payload to the storage service. Upload streams the
// body and reports percentage progress; UploadBuffered is the fallback
// mechanism used once per task after a transport-level failure: it sends the
// whole payload in a single plain request with a declared length.
type Transport interface {
	Upload(ctx context.Context, meta BlobMeta, payload []byte, onProgress func(pct int)) (*UploadResult, error)
	UploadBuffered(ctx context.Context, meta BlobMeta, payload []byte) (*UploadResult, error)
}

// StatusError is a non-2xx response from the storage service. It is a
// protocol failure, distinct from transport failures, and never triggers the
// fallback attempt.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload rejected with status %d", e.Code)
}

type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: baseURL, client: client}
}

// progressReader reports floor(loaded/total*100), clamped, as bytes leave
// the client.
type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	onPct  func(pct int)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 && pr.total > 0 && pr.onPct != nil {
		pr.loaded += int64(n)
		pct := int(pr.loaded * 100 / pr.total)
		if pct > 100 {
			pct = 100
		}
		pr.onPct(pct)
	}
	return n, err
}

func (t *HTTPTransport) Upload(ctx context.Context, meta BlobMeta, payload []byte, onProgress func(pct int)) (*UploadResult, error) {
	body := &progressReader{
		r:     bytes.NewReader(payload),
		total: int64(len(payload)),
		onPct: onProgress,
	}

	// Wrapping the reader hides its length, so the body goes out chunked
	// and progress events track the stream.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/uploads", body)
	if err != nil {
		return nil, err
	}
	setBlobHeaders(req, meta)

	return t.do(req)
}

func (t *HTTPTransport) UploadBuffered(ctx context.Context, meta BlobMeta, payload []byte) (*UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/uploads", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	setBlobHeaders(req, meta)

	return t.do(req)
}

func setBlobHeaders(req *http.Request, meta BlobMeta) {
	req.Header.Set("x-filename", meta.Name)
	if meta.MIME != "" {
		req.Header.Set("Content-Type", meta.MIME)
	}
}

func (t *HTTPTransport) do(req *http.Request) (*UploadResult, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	return &result, nil
}
