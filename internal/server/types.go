// Package server provides the HTTP surface of the lesson video API: starting
// a video job, polling its status and downloading the finished file. Request
// and response DTOs are kept separate from the job types.
package server

// StartVideoRequest is the body of POST /api/v1/generate/video/start.
type StartVideoRequest struct {
	// Instructions describe the lesson to produce.
	Instructions string `json:"instructions" validate:"required,max=4000"`
	// SourceContent is optional reference text, for example extracted from a PDF.
	SourceContent string `json:"source_content" validate:"max=200000"`
	// PushToS3 uploads the finished video when S3 is configured.
	PushToS3 bool `json:"push_to_s3"`
}

// StartVideoResponse is returned when a job has been accepted.
type StartVideoResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// VideoResult describes a finished video.
type VideoResult struct {
	FileName        string `json:"file_name"`
	TotalSlides     int    `json:"total_slides"`
	DurationSeconds int    `json:"duration_seconds"`
	HasAudio        bool   `json:"has_audio"`
	ScriptFallback  bool   `json:"script_fallback,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
}

// VideoStatusResponse is the body of GET /api/v1/generate/video/status/{task_id}.
type VideoStatusResponse struct {
	TaskID   string       `json:"task_id"`
	Status   string       `json:"status"`
	Progress int          `json:"progress"`
	Stage    string       `json:"stage"`
	Message  string       `json:"message"`
	Result   *VideoResult `json:"result,omitempty"`
	// FileURL is the download path of a complete video.
	FileURL string `json:"file_url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
