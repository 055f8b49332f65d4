package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/naheedk999/docai/internal/audio"
)

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type presignResponse struct {
	UploadURL string `json:"upload_url"`
	S3Key     string `json:"s3_key"`
}

type startS3Request struct {
	S3Key    string `json:"s3_key"`
	Language string `json:"language"`
}

type startInlineRequest struct {
	Filename string `json:"filename"`
	File     string `json:"file"`
	Language string `json:"language"`
}

type startResponse struct {
	JobName string `json:"job_name"`
}

// Submit sends normalized audio to the transcription service and returns
// the opaque job name it assigned. The filename extension is rewritten to
// match the normalized payload.
func (c *Client) Submit(ctx context.Context, blob *audio.Blob, filename, language string) (string, error) {
	name := audio.RewriteExt(filename, blob.Ext)
	switch c.variant {
	case VariantInline:
		return c.submitInline(ctx, blob, name, language)
	default:
		return c.submitPresigned(ctx, blob, name, language)
	}
}

func (c *Client) submitPresigned(ctx context.Context, blob *audio.Blob, filename, language string) (string, error) {
	status, body, err := c.postJSON(ctx, "/generate-presigned-url", presignRequest{
		Filename:    filename,
		ContentType: blob.ContentType,
	})
	if err != nil {
		return "", &SubmissionError{Stage: StagePresign, Err: err}
	}
	if status != http.StatusOK {
		return "", &SubmissionError{Stage: StagePresign, StatusCode: status, Body: snippet(body)}
	}
	var presigned presignResponse
	if err := json.Unmarshal(body, &presigned); err != nil {
		return "", &SubmissionError{Stage: StagePresign, Err: fmt.Errorf("decode response: %w", err)}
	}
	if presigned.UploadURL == "" || presigned.S3Key == "" {
		return "", &SubmissionError{Stage: StagePresign, Err: errors.New("response missing upload_url or s3_key")}
	}

	if err := c.uploadObject(ctx, presigned.UploadURL, blob); err != nil {
		return "", err
	}

	status, body, err = c.postJSON(ctx, "/start-transcription-s3", startS3Request{
		S3Key:    presigned.S3Key,
		Language: language,
	})
	return decodeStart(status, body, err)
}

// uploadObject PUTs the raw bytes to the one-time URL. The URL embeds its
// own authorization, so no bearer header is attached.
func (c *Client) uploadObject(ctx context.Context, uploadURL string, blob *audio.Blob) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(blob.Data))
	if err != nil {
		return &SubmissionError{Stage: StageUpload, Err: err}
	}
	req.ContentLength = int64(len(blob.Data))
	req.Header.Set("Content-Type", blob.ContentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SubmissionError{Stage: StageUpload, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		return &SubmissionError{Stage: StageUpload, StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return nil
}

func (c *Client) submitInline(ctx context.Context, blob *audio.Blob, filename, language string) (string, error) {
	status, body, err := c.postJSON(ctx, "/start-transcription", startInlineRequest{
		Filename: filename,
		File:     base64.StdEncoding.EncodeToString(blob.Data),
		Language: language,
	})
	return decodeStart(status, body, err)
}

func decodeStart(status int, body []byte, err error) (string, error) {
	if err != nil {
		return "", &SubmissionError{Stage: StageStart, Err: err}
	}
	if status != http.StatusOK {
		return "", &SubmissionError{Stage: StageStart, StatusCode: status, Body: snippet(body)}
	}
	var started startResponse
	if err := json.Unmarshal(body, &started); err != nil {
		return "", &SubmissionError{Stage: StageStart, Err: fmt.Errorf("decode response: %w", err)}
	}
	if started.JobName == "" {
		return "", &SubmissionError{Stage: StageStart, Err: errors.New("response missing job_name")}
	}
	return started.JobName, nil
}
