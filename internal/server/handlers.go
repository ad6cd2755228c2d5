package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/lessonreel-api/internal/job"
	"github.com/maauso/lessonreel-api/internal/storage"
)

// maxBodyBytes bounds the start request body.
const maxBodyBytes = 2 << 20

// JobService starts and looks up video jobs.
type JobService interface {
	Start(ctx context.Context, in job.StartInput) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)
}

// FileResolver maps a download name to a finished video on disk.
type FileResolver interface {
	ResolveOutput(name string) (string, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   JobService
	files     FileResolver
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service JobService, files FileResolver, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		files:     files,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// StartVideo handles POST /api/v1/generate/video/start.
func (h *Handlers) StartVideo(w http.ResponseWriter, r *http.Request) {
	var req StartVideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	started, err := h.service.Start(r.Context(), job.StartInput{
		Instructions: req.Instructions,
		Reference:    req.SourceContent,
		PushToS3:     req.PushToS3,
	})
	if err != nil {
		if errors.Is(err, job.ErrInstructionsRequired) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to start video job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start video job", "JOB_CREATION_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, StartVideoResponse{
		TaskID: started.ID,
		Status: "started",
	})
}

// VideoStatus handles GET /api/v1/generate/video/status/{task_id}.
func (h *Handlers) VideoStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required", "MISSING_TASK_ID")
		return
	}

	found, err := h.service.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get video job",
			slog.String("job_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task", "TASK_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(found))
}

func statusResponse(j *job.Job) VideoStatusResponse {
	resp := VideoStatusResponse{
		TaskID:   j.ID,
		Status:   string(j.Status),
		Progress: j.Progress,
		Stage:    j.Stage,
		Message:  j.Message,
	}

	switch j.Status {
	case job.StatusComplete:
		if res := j.Result; res != nil {
			resp.Result = &VideoResult{
				FileName:        res.FileName,
				TotalSlides:     res.TotalSlides,
				DurationSeconds: res.DurationSeconds,
				HasAudio:        res.HasAudio,
				ScriptFallback:  res.ScriptFallback,
				VideoURL:        res.VideoURL,
			}
			resp.FileURL = downloadPrefix + res.FileName
		}
	case job.StatusError:
		resp.Error = j.Error
		if resp.Error == "" {
			resp.Error = "Unknown error"
		}
	}
	return resp
}

// Download handles GET /api/v1/generate/download/{filename}. With
// ?download=1 the file is sent as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	path, err := h.files.ResolveOutput(name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidFileName):
			writeError(w, http.StatusBadRequest, "invalid file name", "INVALID_FILE_NAME")
		case errors.Is(err, storage.ErrFileNotFound):
			writeError(w, http.StatusNotFound, "file not found", "FILE_NOT_FOUND")
		default:
			h.logger.Error("failed to resolve download",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read file", "FILE_READ_FAILED")
		}
		return
	}

	f, err := os.Open(path) // #nosec G304 - path comes from ResolveOutput
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found", "FILE_NOT_FOUND")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file", "FILE_READ_FAILED")
		return
	}

	if filepath.Ext(name) == ".mp4" {
		w.Header().Set("Content-Type", "video/mp4")
	}
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
