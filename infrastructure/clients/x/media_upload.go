package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const (
	defaultUploadURL = "https://api.x.com/2/media/upload"

	// ChunkSize is the X platform ceiling for a single APPEND segment.
	ChunkSize = 512 * 1024

	defaultProcessingTimeout = 300 * time.Second
	defaultCheckAfter        = 5 * time.Second

	appendAttempts     = 3
	appendRetryBackoff = 500 * time.Millisecond
)

// mediaTypes maps file extensions onto the MIME types X accepts. Unknown
// extensions fall back to video/mp4.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".ts":   "video/mp2t",
	".srt":  "text/srt",
	".vtt":  "text/vtt",
}

// MediaTypeFor returns the MIME type for a file path or URL path.
func MediaTypeFor(filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	if mediaType, ok := mediaTypes[ext]; ok {
		return mediaType
	}
	return "video/mp4"
}

// MediaCategoryFor maps a MIME type onto the upload category that steers
// server-side processing.
func MediaCategoryFor(mediaType string) string {
	switch {
	case strings.HasPrefix(mediaType, "video/"):
		return "amplify_video"
	case strings.HasPrefix(mediaType, "text/"):
		return "subtitles"
	case mediaType == "image/gif":
		return "tweet_gif"
	default:
		return "tweet_image"
	}
}

// ProcessingInfo is the asynchronous transcoding status attached to video
// uploads.
type ProcessingInfo struct {
	State           string `json:"state"` // pending, in_progress, succeeded, failed
	CheckAfterSecs  int    `json:"check_after_secs,omitempty"`
	ProgressPercent int    `json:"progress_percent,omitempty"`
}

type initResponse struct {
	Data struct {
		ID               string `json:"id"`
		MediaKey         string `json:"media_key"`
		ExpiresAfterSecs int    `json:"expires_after_secs"`
	} `json:"data"`
}

type finalizeResponse struct {
	Data struct {
		ID             string          `json:"id"`
		MediaKey       string          `json:"media_key"`
		Size           int64           `json:"size"`
		ProcessingInfo *ProcessingInfo `json:"processing_info,omitempty"`
	} `json:"data"`
}

type statusResponse struct {
	Data struct {
		ID             string          `json:"id"`
		ProcessingInfo *ProcessingInfo `json:"processing_info,omitempty"`
	} `json:"data"`
}

// MediaUploader drives the three-phase resumable upload protocol plus the
// processing poll loop. A media id is single-use: any mid-sequence failure
// discards it and the caller restarts from INIT with a fresh one.
type MediaUploader struct {
	httpClient        *http.Client
	uploadURL         string
	processingTimeout time.Duration
	tmpDir            string

	// sleep is context-aware and overridable so tests can observe pacing.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMediaUploader(httpClient *http.Client, uploadURL string, processingTimeout time.Duration) *MediaUploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if uploadURL == "" {
		uploadURL = defaultUploadURL
	}
	if processingTimeout <= 0 {
		processingTimeout = defaultProcessingTimeout
	}
	return &MediaUploader{
		httpClient:        httpClient,
		uploadURL:         uploadURL,
		processingTimeout: processingTimeout,
		tmpDir:            os.TempDir(),
		sleep:             sleepContext,
	}
}

// UploadFromURL downloads the media, runs INIT, APPEND per 512 KiB chunk in
// segment order, FINALIZE, and polls processing to a terminal state. The
// scratch file is removed on every exit path.
func (u *MediaUploader) UploadFromURL(ctx context.Context, accessToken, mediaURL string) (string, error) {
	lg := logger.GetLogger()

	tempFile, err := u.download(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	initResp, err := u.initUpload(ctx, accessToken, tempFile)
	if err != nil {
		return "", err
	}
	mediaID := initResp.Data.ID
	lg.WithField("mediaId", mediaID).
		WithField("expiresAfterSecs", initResp.Data.ExpiresAfterSecs).
		Info("Upload initialized")

	if err := u.appendChunks(ctx, accessToken, mediaID, tempFile); err != nil {
		return "", err
	}

	finalizeResp, err := u.finalizeUpload(ctx, accessToken, mediaID)
	if err != nil {
		return "", err
	}

	if finalizeResp.Data.ProcessingInfo != nil {
		if err := u.waitForProcessing(ctx, accessToken, mediaID); err != nil {
			return "", err
		}
	}

	lg.WithField("mediaId", mediaID).Info("Media uploaded")
	return mediaID, nil
}

// download streams the media URL into a scratch file and returns its path.
// The caller owns removal.
func (u *MediaUploader) download(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", model.NewAppError(model.ErrMediaDownload, "invalid media URL", err)
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", model.NewAppError(model.ErrMediaDownload, "media download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewAppError(model.ErrMediaDownload,
			fmt.Sprintf("media source returned status %d", resp.StatusCode), nil)
	}

	// Keep the source extension so classification sees it.
	out, err := os.CreateTemp(u.tmpDir, "x-media-*"+strings.ToLower(path.Ext(urlPath(mediaURL))))
	if err != nil {
		return "", model.NewAppError(model.ErrMediaDownload, "cannot create scratch file", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", model.NewAppError(model.ErrMediaDownload, "media download interrupted", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", model.NewAppError(model.ErrMediaDownload, "cannot close scratch file", err)
	}
	return out.Name(), nil
}

func (u *MediaUploader) initUpload(ctx context.Context, accessToken, filePath string) (*initResponse, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, model.NewAppError(model.ErrMediaUpload, "cannot stat scratch file", err).WithPhase(model.PhaseInit)
	}

	mediaType := MediaTypeFor(filePath)
	requestBody := map[string]interface{}{
		"media_type":     mediaType,
		"total_bytes":    info.Size(),
		"media_category": MediaCategoryFor(mediaType),
	}
	payload, _ := json.Marshal(requestBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL+"/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, model.NewAppError(model.ErrMediaUpload, "cannot build init request", err).WithPhase(model.PhaseInit)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var initResp initResponse
	if err := u.do(req, model.PhaseInit, &initResp); err != nil {
		return nil, err
	}
	if initResp.Data.ID == "" {
		return nil, model.NewAppError(model.ErrMediaUpload, "init response missing media id", nil).WithPhase(model.PhaseInit)
	}
	return &initResp, nil
}

// appendChunks loads the file once and uploads fixed-size slices tagged with
// strictly increasing segment indexes. Segments are sequential by protocol:
// the server reassembles by index and validates ordering.
func (u *MediaUploader) appendChunks(ctx context.Context, accessToken, mediaID, filePath string) error {
	fileBuffer, err := os.ReadFile(filePath)
	if err != nil {
		return model.NewAppError(model.ErrMediaUpload, "cannot read scratch file", err).WithPhase(model.PhaseAppend)
	}

	fileSize := len(fileBuffer)
	totalChunks := (fileSize + ChunkSize - 1) / ChunkSize
	logger.GetLogger().WithField("bytes", fileSize).WithField("chunks", totalChunks).Debug("Appending chunks")

	for segmentIndex := 0; segmentIndex < totalChunks; segmentIndex++ {
		start := segmentIndex * ChunkSize
		end := start + ChunkSize
		if end > fileSize {
			end = fileSize
		}
		if err := u.appendChunk(ctx, accessToken, mediaID, segmentIndex, fileBuffer[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// appendChunk uploads one segment, retrying transient failures a bounded
// number of times with exponential backoff before giving up on the upload.
func (u *MediaUploader) appendChunk(ctx context.Context, accessToken, mediaID string, segmentIndex int, chunk []byte) error {
	var lastErr error
	backoff := appendRetryBackoff

	for attempt := 1; attempt <= appendAttempts; attempt++ {
		if attempt > 1 {
			if err := u.sleep(ctx, backoff); err != nil {
				return model.NewAppError(model.ErrMediaUpload, "upload cancelled", err).WithPhase(model.PhaseAppend)
			}
			backoff *= 2
		}

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("media", "blob")
		if err != nil {
			return model.NewAppError(model.ErrMediaUpload, "cannot build multipart body", err).WithPhase(model.PhaseAppend)
		}
		if _, err := part.Write(chunk); err != nil {
			return model.NewAppError(model.ErrMediaUpload, "cannot write chunk", err).WithPhase(model.PhaseAppend)
		}
		if err := writer.WriteField("segment_index", strconv.Itoa(segmentIndex)); err != nil {
			return model.NewAppError(model.ErrMediaUpload, "cannot write segment index", err).WithPhase(model.PhaseAppend)
		}
		if err := writer.Close(); err != nil {
			return model.NewAppError(model.ErrMediaUpload, "cannot close multipart body", err).WithPhase(model.PhaseAppend)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/%s/append", u.uploadURL, mediaID), body)
		if err != nil {
			return model.NewAppError(model.ErrMediaUpload, "cannot build append request", err).WithPhase(model.PhaseAppend)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		lastErr = u.do(req, model.PhaseAppend, nil)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		logger.GetLogger().WithField("segment", segmentIndex).
			WithField("attempt", attempt).
			WithField("error", lastErr).
			Warn("Chunk append failed")
	}
	if appErr, ok := model.AsAppError(lastErr); ok {
		appErr.Message = fmt.Sprintf("chunk %d failed after %d attempts: %s", segmentIndex, appendAttempts, appErr.Message)
	}
	return lastErr
}

func (u *MediaUploader) finalizeUpload(ctx context.Context, accessToken, mediaID string) (*finalizeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/finalize", u.uploadURL, mediaID), nil)
	if err != nil {
		return nil, model.NewAppError(model.ErrMediaUpload, "cannot build finalize request", err).WithPhase(model.PhaseFinalize)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var finalizeResp finalizeResponse
	if err := u.do(req, model.PhaseFinalize, &finalizeResp); err != nil {
		return nil, err
	}
	return &finalizeResp, nil
}

type statusQuery struct {
	Command string `url:"command"`
	MediaID string `url:"media_id"`
}

func (u *MediaUploader) checkStatus(ctx context.Context, accessToken, mediaID string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.uploadURL, nil)
	if err != nil {
		return nil, model.NewAppError(model.ErrMediaUpload, "cannot build status request", err).WithPhase(model.PhaseStatus)
	}
	values, err := query.Values(statusQuery{Command: "STATUS", MediaID: mediaID})
	if err != nil {
		return nil, model.NewAppError(model.ErrMediaUpload, "cannot encode status query", err).WithPhase(model.PhaseStatus)
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var statusResp statusResponse
	if err := u.do(req, model.PhaseStatus, &statusResp); err != nil {
		return nil, err
	}
	return &statusResp, nil
}

// waitForProcessing polls STATUS until a terminal state. The server paces the
// loop through check_after_secs; the overall wall clock is bounded by the
// configured processing timeout.
func (u *MediaUploader) waitForProcessing(ctx context.Context, accessToken, mediaID string) error {
	start := time.Now()

	for {
		statusResp, err := u.checkStatus(ctx, accessToken, mediaID)
		if err != nil {
			return err
		}

		info := statusResp.Data.ProcessingInfo
		if info == nil || info.State == "succeeded" {
			return nil
		}
		if info.State == "failed" {
			return model.NewAppError(model.ErrMediaProcessingFailed, "media processing failed", nil)
		}

		if time.Since(start) > u.processingTimeout {
			return model.NewAppError(model.ErrMediaProcessingTimeout,
				fmt.Sprintf("media processing exceeded %s", u.processingTimeout), nil)
		}

		wait := defaultCheckAfter
		if info.CheckAfterSecs > 0 {
			wait = time.Duration(info.CheckAfterSecs) * time.Second
		}
		logger.GetLogger().WithField("state", info.State).
			WithField("progress", info.ProgressPercent).
			WithField("checkAfter", wait).
			Debug("Media still processing")
		if err := u.sleep(ctx, wait); err != nil {
			return model.NewAppError(model.ErrMediaUpload, "upload cancelled", err).WithPhase(model.PhaseStatus)
		}
	}
}

// do executes a request, decodes the body into out when provided, and maps
// non-2xx responses onto phase-tagged errors carrying the upstream body.
func (u *MediaUploader) do(req *http.Request, phase string, out interface{}) error {
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return model.NewAppError(model.ErrMediaUpload, "request failed", err).WithPhase(phase)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.NewAppError(model.ErrMediaUpload,
			fmt.Sprintf("platform returned status %d", resp.StatusCode), nil).
			WithPhase(phase).
			WithDetail(string(body))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return model.NewAppError(model.ErrMediaUpload, "cannot parse response", err).WithPhase(phase)
		}
	}
	return nil
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Path
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
