package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/naheedk999/docai/internal/audio"
)

func testBlob() *audio.Blob {
	return &audio.Blob{
		Data:        []byte("compressed-audio"),
		ContentType: audio.NormalizedContentType,
		Ext:         audio.NormalizedExt,
	}
}

func TestSubmitPresigned(t *testing.T) {
	var uploaded []byte
	var uploadContentType string

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/generate-presigned-url", func(w http.ResponseWriter, r *http.Request) {
		var req presignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode presign request: %v", err)
		}
		if req.Filename != "visit.mp3" {
			t.Errorf("expected rewritten filename visit.mp3, got %q", req.Filename)
		}
		if req.ContentType != audio.NormalizedContentType {
			t.Errorf("unexpected content type %q", req.ContentType)
		}
		json.NewEncoder(w).Encode(presignResponse{
			UploadURL: srv.URL + "/object-store/visit.mp3",
			S3Key:     "uploads/visit.mp3",
		})
	})
	mux.HandleFunc("/object-store/visit.mp3", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		uploadContentType = r.Header.Get("Content-Type")
		uploaded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/start-transcription-s3", func(w http.ResponseWriter, r *http.Request) {
		var req startS3Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode start request: %v", err)
		}
		if req.S3Key != "uploads/visit.mp3" || req.Language != "en" {
			t.Errorf("unexpected start request %+v", req)
		}
		json.NewEncoder(w).Encode(startResponse{JobName: "job-123"})
	})

	client := NewClient(srv.URL, "tok-1", VariantPresigned)
	jobName, err := client.Submit(context.Background(), testBlob(), "visit.wav", "en")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobName != "job-123" {
		t.Fatalf("unexpected job name %q", jobName)
	}
	if string(uploaded) != "compressed-audio" {
		t.Fatalf("unexpected uploaded bytes %q", uploaded)
	}
	if uploadContentType != audio.NormalizedContentType {
		t.Fatalf("unexpected upload content type %q", uploadContentType)
	}
}

func TestSubmitInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/start-transcription" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req startInlineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Filename != "recorded-visit.mp3" {
			t.Errorf("expected rewritten filename, got %q", req.Filename)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.File)
		if err != nil {
			t.Errorf("file field not base64: %v", err)
		}
		if string(decoded) != "compressed-audio" {
			t.Errorf("unexpected decoded payload %q", decoded)
		}
		if req.Language != "it" {
			t.Errorf("unexpected language %q", req.Language)
		}
		json.NewEncoder(w).Encode(startResponse{JobName: "job-9"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok-1", VariantInline)
	jobName, err := client.Submit(context.Background(), testBlob(), "recorded-visit.wav", "it")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobName != "job-9" {
		t.Fatalf("unexpected job name %q", jobName)
	}
}

func TestSubmitPresignStageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such clinic", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", VariantPresigned).Submit(context.Background(), testBlob(), "a.wav", "en")
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if serr.Stage != StagePresign || serr.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected error detail %+v", serr)
	}
}

func TestSubmitUploadStageFailure(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/generate-presigned-url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(presignResponse{UploadURL: srv.URL + "/put", S3Key: "k"})
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket gone", http.StatusInternalServerError)
	})

	_, err := NewClient(srv.URL, "tok", VariantPresigned).Submit(context.Background(), testBlob(), "a.wav", "en")
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if serr.Stage != StageUpload {
		t.Fatalf("expected upload stage, got %s", serr.Stage)
	}
}

func TestSubmitStartStageFailure(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/generate-presigned-url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(presignResponse{UploadURL: srv.URL + "/put", S3Key: "k"})
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/start-transcription-s3", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad language", http.StatusBadRequest)
	})

	_, err := NewClient(srv.URL, "tok", VariantPresigned).Submit(context.Background(), testBlob(), "a.wav", "xx")
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if serr.Stage != StageStart || serr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error detail %+v", serr)
	}
}

func TestSubmitMissingJobName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", VariantInline).Submit(context.Background(), testBlob(), "a.wav", "en")
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if serr.Stage != StageStart {
		t.Fatalf("expected start stage, got %s", serr.Stage)
	}
}
