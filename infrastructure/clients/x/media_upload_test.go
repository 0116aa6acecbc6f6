package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
)

type appendRecord struct {
	segmentIndex string
	size         int
}

// uploadServer fakes the three-phase upload endpoints plus the media source.
type uploadServer struct {
	mu            sync.Mutex
	initBody      map[string]interface{}
	appends       []appendRecord
	finalizeCalls int
	statusCalls   int

	mediaBytes    []byte
	appendFail    int // fail the first N append calls with 500
	statusStates  []ProcessingInfo
	noProcessing  bool
	checkAfterRaw []int
}

func (s *uploadServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.URL.Path == "/media/clip.mp4":
			w.Write(s.mediaBytes)

		case r.URL.Path == "/upload/initialize":
			json.NewDecoder(r.Body).Decode(&s.initBody)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": "media-1", "media_key": "key-1", "expires_after_secs": 3600},
			})

		case strings.HasSuffix(r.URL.Path, "/append"):
			require.Equal(t, "/upload/media-1/append", r.URL.Path)
			require.NoError(t, r.ParseMultipartForm(2*ChunkSize))
			file, _, err := r.FormFile("media")
			require.NoError(t, err)
			chunk, _ := io.ReadAll(file)
			file.Close()
			if s.appendFail > 0 {
				s.appendFail--
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"detail":"append flaked"}`))
				return
			}
			s.appends = append(s.appends, appendRecord{
				segmentIndex: r.FormValue("segment_index"),
				size:         len(chunk),
			})
			w.WriteHeader(http.StatusNoContent)

		case strings.HasSuffix(r.URL.Path, "/finalize"):
			require.Equal(t, "/upload/media-1/finalize", r.URL.Path)
			s.finalizeCalls++
			data := map[string]interface{}{"id": "media-1", "media_key": "key-1", "size": len(s.mediaBytes)}
			if !s.noProcessing {
				data["processing_info"] = ProcessingInfo{State: "pending", CheckAfterSecs: 2}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"data": data})

		case r.URL.Path == "/upload" && r.URL.Query().Get("command") == "STATUS":
			require.Equal(t, "media-1", r.URL.Query().Get("media_id"))
			idx := s.statusCalls
			s.statusCalls++
			if idx >= len(s.statusStates) {
				idx = len(s.statusStates) - 1
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": "media-1", "processing_info": s.statusStates[idx]},
			})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestUploader(t *testing.T, s *uploadServer, timeout time.Duration) (*MediaUploader, string, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(s.handler(t))
	t.Cleanup(server.Close)

	uploader := NewMediaUploader(server.Client(), server.URL+"/upload", timeout)
	uploader.tmpDir = t.TempDir()

	var sleeps []time.Duration
	uploader.sleep = func(ctx context.Context, d time.Duration) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sleeps = append(sleeps, d)
		return nil
	}
	return uploader, server.URL, &sleeps
}

func TestUploadFromURLHappyPath(t *testing.T) {
	server := &uploadServer{
		mediaBytes: bytes.Repeat([]byte{0xAB}, 2*1024*1024),
		statusStates: []ProcessingInfo{
			{State: "in_progress", CheckAfterSecs: 2},
			{State: "in_progress", CheckAfterSecs: 1},
			{State: "succeeded"},
		},
	}
	uploader, baseURL, sleeps := newTestUploader(t, server, 0)

	mediaID, err := uploader.UploadFromURL(context.Background(), "token", baseURL+"/media/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "media-1", mediaID)

	assert.Equal(t, "video/mp4", server.initBody["media_type"])
	assert.Equal(t, float64(2*1024*1024), server.initBody["total_bytes"])
	assert.Equal(t, "amplify_video", server.initBody["media_category"])

	require.Len(t, server.appends, 4)
	for i, record := range server.appends {
		assert.Equal(t, fmt.Sprint(i), record.segmentIndex)
		assert.Equal(t, ChunkSize, record.size)
	}

	assert.Equal(t, 1, server.finalizeCalls)
	assert.Equal(t, 3, server.statusCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 1 * time.Second}, *sleeps)

	entries, err := os.ReadDir(uploader.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed on success")
}

func TestUploadChunkSizesWithRemainder(t *testing.T) {
	server := &uploadServer{
		mediaBytes:   bytes.Repeat([]byte{0x01}, ChunkSize+1000),
		noProcessing: true,
	}
	uploader, baseURL, _ := newTestUploader(t, server, 0)

	_, err := uploader.UploadFromURL(context.Background(), "token", baseURL+"/media/clip.mp4")
	require.NoError(t, err)

	require.Len(t, server.appends, 2)
	assert.Equal(t, ChunkSize, server.appends[0].size)
	assert.Equal(t, 1000, server.appends[1].size)
	assert.Equal(t, 0, server.statusCalls, "no poll when finalize has no processing_info")
}

func TestAppendRetriesTransientFailures(t *testing.T) {
	server := &uploadServer{
		mediaBytes:   bytes.Repeat([]byte{0x02}, 1000),
		noProcessing: true,
		appendFail:   2,
	}
	uploader, baseURL, sleeps := newTestUploader(t, server, 0)

	_, err := uploader.UploadFromURL(context.Background(), "token", baseURL+"/media/clip.mp4")
	require.NoError(t, err)

	require.Len(t, server.appends, 1)
	assert.Equal(t, "0", server.appends[0].segmentIndex)
	// 500ms before the second attempt, 1s before the third.
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *sleeps)
}

func TestAppendGivesUpAfterBoundedAttempts(t *testing.T) {
	server := &uploadServer{
		mediaBytes: bytes.Repeat([]byte{0x03}, 1000),
		appendFail: 100,
	}
	uploader, baseURL, _ := newTestUploader(t, server, 0)

	_, err := uploader.UploadFromURL(context.Background(), "token", baseURL+"/media/clip.mp4")
	require.Error(t, err)

	appErr, ok := model.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrMediaUpload, appErr.Kind)
	assert.Equal(t, model.PhaseAppend, appErr.Phase)
	assert.Contains(t, appErr.Detail, "append flaked")
	assert.Equal(t, 0, server.finalizeCalls)

	entries, readErr := os.ReadDir(uploader.tmpDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "scratch file must be removed on failure")
}

func TestProcessingFailureSurfaced(t *testing.T) {
	server := &uploadServer{
		mediaBytes:   bytes.Repeat([]byte{0x04}, 1000),
		statusStates: []ProcessingInfo{{State: "failed"}},
	}
	uploader, baseURL, _ := newTestUploader(t, server, 0)

	_, err := uploader.UploadFromURL(context.Background(), "token", baseURL+"/media/clip.mp4")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrMediaProcessingFailed))
}

func TestProcessingTimeoutEnforced(t *testing.T) {
	server := &uploadServer{
		mediaBytes:   bytes.Repeat([]byte{0x05}, 1000),
		statusStates: []ProcessingInfo{{State: "in_progress", CheckAfterSecs: 1}},
	}
	uploader, baseURL, _ := newTestUploader(t, server, time.Nanosecond)

	_, err := uploader.UploadFromURL(context.Background(), "token", baseURL+"/media/clip.mp4")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrMediaProcessingTimeout))
}

func TestUploadCancelledDuringPoll(t *testing.T) {
	server := &uploadServer{
		mediaBytes:   bytes.Repeat([]byte{0x06}, 1000),
		statusStates: []ProcessingInfo{{State: "in_progress", CheckAfterSecs: 1}},
	}
	uploader, baseURL, _ := newTestUploader(t, server, 0)

	ctx, cancel := context.WithCancel(context.Background())
	uploader.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := uploader.UploadFromURL(ctx, "token", baseURL+"/media/clip.mp4")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrMediaUpload))
}

func TestDownloadFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	uploader := NewMediaUploader(server.Client(), server.URL+"/upload", 0)
	uploader.tmpDir = t.TempDir()

	_, err := uploader.UploadFromURL(context.Background(), "token", server.URL+"/missing.mp4")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrMediaDownload))
}

func TestMediaTypeClassification(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":  "image/jpeg",
		"photo.JPEG": "image/jpeg",
		"photo.png":  "image/png",
		"anim.gif":   "image/gif",
		"pic.webp":   "image/webp",
		"pic.bmp":    "image/bmp",
		"scan.tiff":  "image/tiff",
		"clip.mp4":   "video/mp4",
		"clip.mov":   "video/quicktime",
		"clip.webm":  "video/webm",
		"clip.ts":    "video/mp2t",
		"subs.srt":   "text/srt",
		"subs.vtt":   "text/vtt",
		"noext":      "video/mp4",
		"weird.xyz":  "video/mp4",
	}
	for filePath, expected := range cases {
		assert.Equal(t, expected, MediaTypeFor(filePath), filePath)
	}
}

func TestMediaCategoryDerivation(t *testing.T) {
	cases := map[string]string{
		"video/mp4":       "amplify_video",
		"video/quicktime": "amplify_video",
		"text/srt":        "subtitles",
		"image/gif":       "tweet_gif",
		"image/jpeg":      "tweet_image",
		"image/png":       "tweet_image",
	}
	for mediaType, expected := range cases {
		assert.Equal(t, expected, MediaCategoryFor(mediaType), mediaType)
	}
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
