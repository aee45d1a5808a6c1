package dto

import (
	"github.com/google/uuid"
)

// IntelligenceMode selects the model depth for a synthesis run.
type IntelligenceMode string

const (
	ModeFast IntelligenceMode = "fast"
	ModeDeep IntelligenceMode = "deep"
)

// IngestionStatus tracks the granular progress of the background
// pipeline, polled by the frontend progress bar.
type IngestionStatus string

const (
	StatusQueued        IngestionStatus = "queued"
	StatusDownloading   IngestionStatus = "downloading"
	StatusTranscribing  IngestionStatus = "transcribing"
	StatusOCRProcessing IngestionStatus = "ocr_processing"
	StatusVectorizing   IngestionStatus = "vectorizing"
	StatusSynthesizing  IngestionStatus = "synthesizing"
	StatusCompleted     IngestionStatus = "completed"
	StatusFailed        IngestionStatus = "failed"
)

// SourceType classifies an uploaded asset.
type SourceType string

const (
	SourcePDF     SourceType = "pdf"
	SourceDOCX    SourceType = "docx"
	SourcePPTX    SourceType = "pptx"
	SourceVideo   SourceType = "video"
	SourceAudio   SourceType = "audio"
	SourceImage   SourceType = "image"
	SourceYouTube SourceType = "youtube"
)

// --- Input Models ---

type YoutubeIngestRequest struct {
	URL string `json:"url"`
}

type FileUploadResponse struct {
	FileID     string     `json:"file_id"`
	Filename   string     `json:"filename"`
	FileSizeMB float64    `json:"file_size_mb"`
	SourceType SourceType `json:"source_type"`
}

// TriggerSynthesisRequest is the 'Extract & Synthesize' button payload.
type TriggerSynthesisRequest struct {
	Mode IntelligenceMode `json:"mode"`
}

// --- Status/Response Models ---

// PipelineProgressResponse is polled to update the progress bar.
type PipelineProgressResponse struct {
	SessionID          uuid.UUID       `json:"session_id"`
	Status             IngestionStatus `json:"status"`
	ProgressPercentage int             `json:"progress_percentage"`
	CurrentStep        string          `json:"current_step"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	ResultURL          string          `json:"result_url,omitempty"`
}
