// Package api hosts the gateway HTTP server. Clinicians upload visit
// recordings here; processing happens asynchronously on the worker, and the
// gateway serves visit state, transcripts, reports, and PDF downloads.
package api

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naheedk999/docai/internal/audio"
	"github.com/naheedk999/docai/internal/config"
	"github.com/naheedk999/docai/internal/queue"
	"github.com/naheedk999/docai/internal/report"
	"github.com/naheedk999/docai/internal/signing"
	"github.com/naheedk999/docai/internal/visit"
)

// Archive is the slice of object storage the gateway needs.
type Archive interface {
	UploadAudio(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	DownloadPDF(ctx context.Context, objectKey string) ([]byte, error)
	PresignExportURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Server stitches together configuration, the visit store, object storage,
// the task queue, and the signing helper behind HTTP handlers.
type Server struct {
	cfg      *config.Config
	store    visit.Store
	archive  Archive
	enqueuer queue.Enqueuer
	signer   *signing.Signer
	spoolDir string
}

// New creates a configured gateway server.
func New(cfg *config.Config, store visit.Store, archive Archive, enqueuer queue.Enqueuer, signer *signing.Signer) (*Server, error) {
	dir := filepath.Join(os.TempDir(), "docai-uploads")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		archive:  archive,
		enqueuer: enqueuer,
		signer:   signer,
		spoolDir: dir,
	}, nil
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the handler tree. Exported so tests can drive the mux
// through httptest without binding a port.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/visits", s.handleCreateVisit)
	mux.HandleFunc("/visits/", s.handleVisitRoute)
	mux.HandleFunc("/download", s.handleDownload)
	return corsMiddleware(loggingMiddleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes+64*1024)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}

	fields := map[string]string{}
	var spooled *spoolFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		if part.FormName() == "file" {
			if spooled != nil {
				part.Close()
				continue
			}
			spooled, err = s.spoolPart(part)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer spooled.cleanup()
			continue
		}
		value, err := io.ReadAll(io.LimitReader(part, 4096))
		part.Close()
		if err != nil {
			http.Error(w, "failed to read form field", http.StatusBadRequest)
			return
		}
		fields[part.FormName()] = strings.TrimSpace(string(value))
	}
	if spooled == nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	if fields["patient_name"] == "" {
		http.Error(w, "missing patient_name", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	objectKey := path.Join("uploads", id, spooled.name)
	f, err := os.Open(spooled.path)
	if err != nil {
		http.Error(w, "upload unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	if err := s.archive.UploadAudio(r.Context(), objectKey, f, spooled.size, spooled.contentType); err != nil {
		log.Printf("upload audio: %v", err)
		http.Error(w, "failed to store recording", http.StatusBadGateway)
		return
	}

	v := &visit.Visit{
		ID:          id,
		PatientID:   fields["patient_id"],
		PatientName: fields["patient_name"],
		PatientDOB:  fields["patient_dob"],
		FileName:    spooled.name,
		ObjectKey:   objectKey,
		Language:    config.NormalizeLanguage(fields["language"]),
	}
	if err := s.store.Create(r.Context(), v); err != nil {
		log.Printf("create visit: %v", err)
		http.Error(w, "failed to record visit", http.StatusInternalServerError)
		return
	}

	payload := queue.ProcessPayload{
		VisitID:   v.ID,
		ObjectKey: v.ObjectKey,
		FileName:  v.FileName,
		Language:  v.Language,
	}
	if err := s.enqueuer.EnqueueProcess(r.Context(), payload); err != nil {
		log.Printf("enqueue visit %s: %v", v.ID, err)
		_ = s.store.MarkFailed(r.Context(), v.ID, "failed to queue processing")
		http.Error(w, "failed to queue processing", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     v.ID,
		"status": string(visit.StatusQueued),
	})
}

func (s *Server) handleVisitRoute(w http.ResponseWriter, r *http.Request) {
	// /visits/ supports nested resources like /visits/{id}/reports/{kind}/link.
	rest := strings.TrimPrefix(r.URL.Path, "/visits/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handleVisitInfo(w, r, id)
	case len(parts) == 2 && parts[1] == "transcript":
		s.handleTranscript(w, r, id)
	case len(parts) == 3 && parts[1] == "reports":
		s.handleReport(w, r, id, parts[2])
	case len(parts) == 4 && parts[1] == "reports" && parts[3] == "link":
		s.handleReportLink(w, r, id, parts[2])
	case len(parts) == 4 && parts[1] == "reports" && parts[3] == "export-url":
		s.handleExportURL(w, r, id, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleVisitInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "visit not found", http.StatusNotFound)
		return
	}
	// Object keys are internal; strip them from the public view.
	v.ObjectKey = ""
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "visit not found", http.StatusNotFound)
		return
	}
	switch v.Status {
	case visit.StatusCompleted:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, v.Transcript)
	case visit.StatusFailed:
		msg := "processing failed"
		if v.ErrorMessage != nil && *v.ErrorMessage != "" {
			msg = *v.ErrorMessage
		}
		http.Error(w, msg, http.StatusConflict)
	default:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": string(v.Status)})
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id, kind string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, rep, _, ok := s.lookupReport(w, r, id, kind)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":     v.ID,
		"kind":   kind,
		"report": rep,
	})
}

func (s *Server) handleReportLink(w http.ResponseWriter, r *http.Request, id, kind string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, _, _, ok := s.lookupReport(w, r, id, kind); !ok {
		return
	}
	expiry := time.Now().Add(s.cfg.SignedURLTTL).Unix()
	signature := s.signer.Sign(id, kind, expiry)
	link := "/download?" + url.Values{
		"visit":     {id},
		"kind":      {kind},
		"expires":   {strconv.FormatInt(expiry, 10)},
		"signature": {signature},
	}.Encode()
	respondJSON(w, http.StatusOK, map[string]string{
		"url":     link,
		"expires": strconv.FormatInt(expiry, 10),
	})
}

func (s *Server) handleExportURL(w http.ResponseWriter, r *http.Request, id, kind string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, _, key, ok := s.lookupReport(w, r, id, kind)
	if !ok {
		return
	}
	u, err := s.archive.PresignExportURL(r.Context(), key, s.cfg.SignedURLTTL)
	if err != nil {
		log.Printf("presign export %s: %v", key, err)
		http.Error(w, "failed to presign export", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	id := q.Get("visit")
	kind := q.Get("kind")
	expires := q.Get("expires")
	signature := q.Get("signature")
	if id == "" || kind == "" || expires == "" || signature == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	expiryUnix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		http.Error(w, "invalid expires", http.StatusBadRequest)
		return
	}
	if time.Unix(expiryUnix, 0).Before(time.Now()) {
		http.Error(w, "url expired", http.StatusUnauthorized)
		return
	}
	if !s.signer.Validate(id, kind, expires, signature) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	_, _, key, ok := s.lookupReport(w, r, id, kind)
	if !ok {
		return
	}
	doc, err := s.archive.DownloadPDF(r.Context(), key)
	if err != nil {
		log.Printf("download pdf %s: %v", key, err)
		http.Error(w, "report unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+kind+`_report_`+id+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// lookupReport resolves a visit plus the requested report and its PDF key,
// writing the error response itself when anything is missing.
func (s *Server) lookupReport(w http.ResponseWriter, r *http.Request, id, kind string) (*visit.Visit, *report.Report, string, bool) {
	if kind != string(report.KindPatient) && kind != string(report.KindDoctor) {
		http.Error(w, "unknown report kind", http.StatusNotFound)
		return nil, nil, "", false
	}
	v, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "visit not found", http.StatusNotFound)
		return nil, nil, "", false
	}
	if v.Status != visit.StatusCompleted {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": string(v.Status)})
		return nil, nil, "", false
	}
	var rep *report.Report
	var key *string
	if kind == string(report.KindPatient) {
		rep, key = v.PatientReport, v.PatientPDFKey
	} else {
		rep, key = v.DoctorReport, v.DoctorPDFKey
	}
	if rep == nil || key == nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return nil, nil, "", false
	}
	return v, rep, *key, true
}

type spoolFile struct {
	path        string
	name        string
	size        int64
	contentType string
}

func (f *spoolFile) cleanup() {
	_ = os.Remove(f.path)
}

// spoolPart streams one multipart file part to a temp file, enforcing the
// configured size limit and rejecting unsupported audio formats.
func (s *Server) spoolPart(part *multipart.Part) (*spoolFile, error) {
	defer part.Close()
	name := filepath.Base(part.FileName())
	if name == "" || name == "." {
		return nil, errors.New("missing filename")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !audio.IsSupportedFormat(ext) {
		return nil, errors.New("unsupported audio format " + ext)
	}

	dst, err := os.CreateTemp(s.spoolDir, "visit-*"+ext)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(part, s.cfg.MaxAudioBytes+1))
	if err != nil {
		os.Remove(dst.Name())
		return nil, err
	}
	if written == 0 {
		os.Remove(dst.Name())
		return nil, errors.New("empty file")
	}
	if written > s.cfg.MaxAudioBytes {
		os.Remove(dst.Name())
		return nil, errors.New("recording exceeds size limit")
	}
	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &spoolFile{path: dst.Name(), name: name, size: written, contentType: contentType}, nil
}
