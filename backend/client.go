// Package backend is the REST client for the capture backend. It covers
// session lifecycle (begin, complete, abort), the per-chunk upload
// fallback used when no live channel is open, and the video catalog
// operations built on the finalized recordings.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/CaptureKit/codec"
	"github.com/AltairaLabs/CaptureKit/logger"
	"github.com/AltairaLabs/CaptureKit/types"
)

// HTTP constants
const (
	contentTypeHeader    = "Content-Type"
	applicationJSON      = "application/json"
	applicationOctet     = "application/octet-stream"
	authorizationHeader  = "Authorization"
	idempotencyKeyHeader = "Idempotency-Key"
)

// DefaultTimeout bounds every backend request. Chunk uploads carry a
// few megabytes, so this is well above the interactive default.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when the backend reports an unknown video.
var ErrNotFound = errors.New("video not found")

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Config configures the backend client.
type Config struct {
	// BaseURL is the backend API root, e.g. "https://api.example.com/api".
	BaseURL string

	// AuthToken, when non-empty, is sent as a bearer token.
	AuthToken string

	// Timeout bounds each request. Default: DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when
	// set.
	HTTPClient *http.Client
}

// Client talks to the capture backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.AuthToken,
		http:    httpClient,
	}
}

// BeginRequest starts a capture session.
type BeginRequest struct {
	Title string `json:"title"`
	Codec string `json:"codec"`
}

// BeginResponse identifies the session created by Begin.
type BeginResponse struct {
	// SessionID identifies the capture session on every subsequent
	// call, including the upload channel URL.
	SessionID string `json:"session_id"`

	// UploadID is the multipart upload the chunks land in.
	UploadID string `json:"upload_id"`

	// Key is the storage object key of the recording.
	Key string `json:"key"`
}

// Begin registers a new recording and returns its session identifiers.
func (c *Client) Begin(ctx context.Context, title string, sel codec.Selection) (*BeginResponse, error) {
	var out BeginResponse
	err := c.doJSON(ctx, http.MethodPost, "/videos", BeginRequest{
		Title: title,
		Codec: string(sel.Name),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	logger.Debug("backend: session started", "session_id", out.SessionID, "upload_id", out.UploadID)
	return &out, nil
}

// ChunkReceipt acknowledges one uploaded chunk.
type ChunkReceipt struct {
	PartNumber int64  `json:"part_number"`
	ETag       string `json:"etag"`
}

// UploadChunk pushes one chunk over REST. This is the fallback path for
// chunks produced while no live channel is open; the body is the raw
// chunk bytes and the sequence number rides in the query string so the
// backend can slot it into the multipart upload.
func (c *Client) UploadChunk(ctx context.Context, sessionID string, seq int64, data []byte) (*ChunkReceipt, error) {
	path := fmt.Sprintf("/videos/%s/chunks?seq=%d", sessionID, seq)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set(contentTypeHeader, applicationOctet)
	req.Header.Set(idempotencyKeyHeader, uuid.New().String())

	var out ChunkReceipt
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", seq, err)
	}
	return &out, nil
}

// CompleteRequest finalizes a recording.
type CompleteRequest struct {
	// Duration is the raw recorded length in seconds.
	Duration float64 `json:"duration"`

	// TrimEnd, when set, asks the backend to cut playback at this
	// point instead of the raw end.
	TrimEnd *float64 `json:"trim_end,omitempty"`
}

// Complete finalizes the recording and returns the playable descriptor.
// This is the fallback for the in-channel completion handshake; the
// idempotency key makes it safe to call after an ack timed out.
func (c *Client) Complete(ctx context.Context, sessionID string, duration float64, trimEnd *float64) (*types.VideoDescriptor, error) {
	path := fmt.Sprintf("/videos/%s/complete", sessionID)
	body, err := json.Marshal(CompleteRequest{Duration: duration, TrimEnd: trimEnd})
	if err != nil {
		return nil, fmt.Errorf("marshal complete request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(contentTypeHeader, applicationJSON)
	req.Header.Set(idempotencyKeyHeader, uuid.New().String())

	var out types.VideoDescriptor
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	logger.Debug("backend: session completed", "session_id", sessionID, "status", out.Status)
	return &out, nil
}

// Abort tells the backend to discard the session. Best effort: callers
// fire it during cancel and ignore the result beyond logging.
func (c *Client) Abort(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/videos/%s", sessionID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("abort session: %w", err)
	}
	return nil
}

// Get fetches one video by ID.
func (c *Client) Get(ctx context.Context, videoID string) (*types.VideoDescriptor, error) {
	var out types.VideoDescriptor
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+videoID, nil, &out); err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return &out, nil
}

// List returns a page of the video catalog, newest first. limit <= 0
// leaves paging to the backend defaults.
func (c *Client) List(ctx context.Context, limit, offset int) ([]types.VideoDescriptor, error) {
	path := "/videos"
	if limit > 0 {
		path = fmt.Sprintf("/videos?limit=%d&offset=%d", limit, offset)
	}
	var out []types.VideoDescriptor
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return out, nil
}

// TrimUpdate adjusts the playback window of a finalized video.
type TrimUpdate struct {
	TrimStart *float64 `json:"trim_start,omitempty"`
	TrimEnd   *float64 `json:"trim_end,omitempty"`
}

// UpdateTrim patches the trim window of a finalized video.
func (c *Client) UpdateTrim(ctx context.Context, videoID string, update TrimUpdate) (*types.VideoDescriptor, error) {
	var out types.VideoDescriptor
	if err := c.doJSON(ctx, http.MethodPatch, "/videos/"+videoID, update, &out); err != nil {
		return nil, fmt.Errorf("update trim: %w", err)
	}
	return &out, nil
}

// BatchCreateMarkers uploads scene markers accumulated during capture.
// Used when markers could not be delivered over the live channel.
func (c *Client) BatchCreateMarkers(ctx context.Context, videoID string, markers []types.SceneMarker) error {
	body := struct {
		Markers []types.SceneMarker `json:"markers"`
	}{Markers: markers}
	if err := c.doJSON(ctx, http.MethodPost, "/videos/"+videoID+"/markers", body, nil); err != nil {
		return fmt.Errorf("create markers: %w", err)
	}
	logger.Debug("backend: markers uploaded", "video_id", videoID, "count", len(markers))
	return nil
}

// Annotation is a timestamped comment on a finalized video.
type Annotation struct {
	ID        string    `json:"id,omitempty"`
	VideoID   string    `json:"video_id"`
	Timestamp float64   `json:"timestamp"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CreateAnnotation attaches a timestamped comment to a video.
func (c *Client) CreateAnnotation(ctx context.Context, videoID string, timestamp float64, text string) (*Annotation, error) {
	var out Annotation
	body := Annotation{VideoID: videoID, Timestamp: timestamp, Text: text}
	if err := c.doJSON(ctx, http.MethodPost, "/videos/"+videoID+"/annotations", body, &out); err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}
	return &out, nil
}

// ListAnnotations returns a video's annotations ordered by timestamp.
func (c *Client) ListAnnotations(ctx context.Context, videoID string) ([]Annotation, error) {
	var out []Annotation
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+videoID+"/annotations", nil, &out); err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	return out, nil
}

// doJSON runs one JSON request/response round-trip. A nil body sends no
// payload; a nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set(contentTypeHeader, applicationJSON)
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set(authorizationHeader, "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	logger.APIRequest("backend", req.Method, req.URL.String(), nil, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.APIResponse("backend", 0, "", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	logger.APIResponse("backend", resp.StatusCode, string(respBody), nil)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
