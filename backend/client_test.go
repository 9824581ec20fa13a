package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/CaptureKit/codec"
	"github.com/AltairaLabs/CaptureKit/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, AuthToken: "secret-token"})
}

func TestBegin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var req BeginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Demo walkthrough", req.Title)
		// The backend stores the negotiated short name, not the full
		// MIME string the channel was opened with.
		assert.Equal(t, "vp9", req.Codec)

		json.NewEncoder(w).Encode(BeginResponse{
			SessionID: "sess-1",
			UploadID:  "up-1",
			Key:       "videos/sess-1.webm",
		})
	})

	resp, err := client.Begin(context.Background(), "Demo walkthrough", codec.Selection{
		MIMEType: "video/webm;codecs=vp9,opus",
		Name:     codec.VP9,
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "up-1", resp.UploadID)
	assert.Equal(t, "videos/sess-1.webm", resp.Key)
}

func TestUploadChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/videos/sess-1/chunks", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("seq"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{0xDE, 0xAD}, body)

		json.NewEncoder(w).Encode(ChunkReceipt{PartNumber: 7, ETag: "etag-7"})
	})

	receipt, err := client.UploadChunk(context.Background(), "sess-1", 7, []byte{0xDE, 0xAD})
	require.NoError(t, err)
	assert.Equal(t, int64(7), receipt.PartNumber)
	assert.Equal(t, "etag-7", receipt.ETag)
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/sess-1/complete", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var req CompleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 42.5, req.Duration)
		require.NotNil(t, req.TrimEnd)
		assert.Equal(t, 41.0, *req.TrimEnd)

		json.NewEncoder(w).Encode(types.VideoDescriptor{
			ID:          "sess-1",
			Status:      types.VideoStatusReady,
			PlaybackURL: "https://cdn.example.com/sess-1.webm",
		})
	})

	trimEnd := 41.0
	video, err := client.Complete(context.Background(), "sess-1", 42.5, &trimEnd)
	require.NoError(t, err)
	assert.Equal(t, types.VideoStatusReady, video.Status)
	assert.Equal(t, "https://cdn.example.com/sess-1.webm", video.PlaybackURL)
}

func TestCompleteOmitsUnsetTrim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NotContains(t, string(body), "trim_end")
		json.NewEncoder(w).Encode(types.VideoDescriptor{ID: "sess-1"})
	})

	_, err := client.Complete(context.Background(), "sess-1", 10, nil)
	require.NoError(t, err)
}

func TestAbort(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Abort(context.Background(), "sess-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/videos/sess-1", gotPath)
}

func TestGetNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such video", http.StatusNotFound)
	})

	_, err := client.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/videos", r.URL.Path)
		json.NewEncoder(w).Encode([]types.VideoDescriptor{
			{ID: "b", Status: types.VideoStatusReady},
			{ID: "a", Status: types.VideoStatusRecording},
		})
	})

	videos, err := client.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "b", videos[0].ID)
}

func TestUpdateTrim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/videos/vid-1", r.URL.Path)

		var update TrimUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
		require.NotNil(t, update.TrimEnd)
		assert.Equal(t, 30.5, *update.TrimEnd)
		assert.Nil(t, update.TrimStart)

		json.NewEncoder(w).Encode(types.VideoDescriptor{ID: "vid-1", TrimEnd: update.TrimEnd})
	})

	trimEnd := 30.5
	video, err := client.UpdateTrim(context.Background(), "vid-1", TrimUpdate{TrimEnd: &trimEnd})
	require.NoError(t, err)
	require.NotNil(t, video.TrimEnd)
	assert.Equal(t, 30.5, *video.TrimEnd)
}

func TestBatchCreateMarkers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/vid-1/markers", r.URL.Path)

		var body struct {
			Markers []types.SceneMarker `json:"markers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Markers, 2)
		assert.Equal(t, types.MarkerSourceManual, body.Markers[1].Source)
		w.WriteHeader(http.StatusCreated)
	})

	err := client.BatchCreateMarkers(context.Background(), "vid-1", []types.SceneMarker{
		{Timestamp: 1.2, Label: "Scene change", Source: types.MarkerSourceFocusSwitch},
		{Timestamp: 9.8, Label: "Key moment", Source: types.MarkerSourceManual},
	})
	require.NoError(t, err)
}

func TestListWithPaging(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode([]types.VideoDescriptor{})
	})

	_, err := client.List(context.Background(), 25, 50)
	require.NoError(t, err)
}

func TestAnnotations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/vid-1/annotations", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var ann Annotation
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ann))
			assert.Equal(t, 12.5, ann.Timestamp)
			ann.ID = "ann-1"
			json.NewEncoder(w).Encode(ann)
		case http.MethodGet:
			json.NewEncoder(w).Encode([]Annotation{{ID: "ann-1", Timestamp: 12.5, Text: "nice transition"}})
		}
	})

	created, err := client.CreateAnnotation(context.Background(), "vid-1", 12.5, "nice transition")
	require.NoError(t, err)
	assert.Equal(t, "ann-1", created.ID)

	listed, err := client.ListAnnotations(context.Background(), "vid-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "nice transition", listed[0].Text)
}

func TestServerErrorSurfacesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upload bucket unavailable", http.StatusInternalServerError)
	})

	_, err := client.Begin(context.Background(), "t", codec.Selection{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upload bucket unavailable")
}
