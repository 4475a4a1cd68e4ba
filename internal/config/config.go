package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings is every tunable of the service, read from the environment.
type Settings struct {
	ProjectID string `envconfig:"PROJECT_ID" default:""`
	Port      string `envconfig:"PORT" default:"8080"`

	Limits     Limits
	Queue      Queue
	Anthropic  Anthropic
	Vertex     Vertex
	Perplexity Perplexity
	DocAI      DocAI
	Glide      Glide
	Sheets     Sheets
	Firestore  Firestore
	Archive    Archive
	Workflow   Workflow
	Log        Log
	Prompts    Prompts
}

type Limits struct {
	MaxAttachmentBytes     int64    `envconfig:"MAX_ATTACHMENT_BYTES" default:"52428800"`
	FetchTimeoutSec        int      `envconfig:"FETCH_TIMEOUT_SEC" default:"90"`
	AttachmentConcurrency  int      `envconfig:"ATTACHMENT_CONCURRENCY" default:"1"`
	MaxPDFPages            int      `envconfig:"MAX_PDF_PAGES" default:"60"`
	MinPDFTextCharsPerPage int      `envconfig:"MIN_PDF_TEXT_CHARS_PER_PAGE" default:"40"`
	MinOCRCharsToAccept    int      `envconfig:"MIN_OCR_CHARS_TO_ACCEPT" default:"80"`
	PDFScannedStages       []string `envconfig:"PDF_SCANNED_STAGES" default:"cloud_ocr"`
	MaxExcelRows           int      `envconfig:"MAX_EXCEL_ROWS" default:"250"`
	MaxExcelCols           int      `envconfig:"MAX_EXCEL_COLS" default:"40"`
	MaxExcelTablesPerSheet int      `envconfig:"MAX_EXCEL_TABLES_PER_SHEET" default:"5"`
	EnableLocalOCR         bool     `envconfig:"ENABLE_LOCAL_OCR" default:"true"`
	TesseractPath          string   `envconfig:"TESSERACT_PATH" default:"tesseract"`
	EnableVisionFallback   bool     `envconfig:"ENABLE_CLAUDE_VISION_FALLBACK" default:"true"`
	VisionProvider         string   `envconfig:"VISION_PROVIDER" default:"anthropic"`
	GenerationProvider     string   `envconfig:"GENERATION_PROVIDER" default:"anthropic"`
}

type Queue struct {
	MaxQueueSize      int `envconfig:"MAX_QUEUE_SIZE" default:"50"`
	MaxConcurrentJobs int `envconfig:"MAX_CONCURRENT_JOBS" default:"2"`
	JobTimeoutSec     int `envconfig:"JOB_TIMEOUT_SEC" default:"420"`
	ShutdownGraceSec  int `envconfig:"SHUTDOWN_GRACE_SEC" default:"30"`
}

type Anthropic struct {
	APIKey          string  `envconfig:"ANTHROPIC_API_KEY" default:""`
	Model           string  `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-latest"`
	ModelFallbacks  string  `envconfig:"ANTHROPIC_MODEL_FALLBACKS" default:"claude-3-5-sonnet-latest,claude-3-5-haiku-latest"`
	MaxTokens       int     `envconfig:"ANTHROPIC_MAX_TOKENS" default:"2700"`
	VisionMaxTokens int     `envconfig:"ANTHROPIC_VISION_MAX_TOKENS" default:"1200"`
	Temperature     float64 `envconfig:"ANTHROPIC_TEMPERATURE" default:"0.2"`
}

// Models is the primary model followed by the fallbacks, without duplicates.
func (a Anthropic) Models() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range append([]string{a.Model}, strings.Split(a.ModelFallbacks, ",")...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

type Vertex struct {
	Region string `envconfig:"VERTEX_AI_REGION" default:"us-central1"`
	Model  string `envconfig:"VERTEX_AI_MODEL" default:"gemini-1.5-pro"`
}

type Perplexity struct {
	APIKey     string `envconfig:"PERPLEXITY_API_KEY" default:""`
	BaseURL    string `envconfig:"PERPLEXITY_BASE_URL" default:"https://api.perplexity.ai"`
	Model      string `envconfig:"PERPLEXITY_MODEL" default:"sonar"`
	MaxResults int    `envconfig:"PERPLEXITY_MAX_RESULTS" default:"6"`
}

type DocAI struct {
	Enabled     bool   `envconfig:"ENABLE_DOCAI_OCR" default:"true"`
	ProjectID   string `envconfig:"DOCAI_PROJECT_ID" default:""`
	Location    string `envconfig:"DOCAI_LOCATION" default:"asia-south1"`
	ProcessorID string `envconfig:"DOCAI_PROCESSOR_ID" default:""`
	SAJSONB64   string `envconfig:"DOCAI_SA_JSON_B64" default:""`
	TimeoutSec  int    `envconfig:"DOCAI_TIMEOUT_SEC" default:"120"`
}

// Configured reports whether enough is set to call the processor.
func (d DocAI) Configured() bool {
	return d.Enabled && d.ProjectID != "" && d.ProcessorID != ""
}

type Glide struct {
	Enabled        bool   `envconfig:"ENABLE_GLIDE_WRITEBACK" default:"false"`
	Backend        string `envconfig:"WRITEBACK_BACKEND" default:"glide"`
	APIKey         string `envconfig:"GLIDE_API_KEY" default:""`
	AppID          string `envconfig:"GLIDE_APP_ID" default:""`
	BaseURL        string `envconfig:"GLIDE_BASE_URL" default:"https://api.glideapp.io/api/function"`
	ResponsesTable string `envconfig:"GLIDE_ZAI_RESPONSES_TABLE" default:""`
	ColRFQID       string `envconfig:"GLIDE_COL_RFQ_ID" default:"usIzP"`

	ColSummary  string `envconfig:"GLIDE_COL_SUMMARY" default:"hK56D"`
	ColScope    string `envconfig:"GLIDE_COL_SCOPE" default:"Name"`
	ColCost     string `envconfig:"GLIDE_COL_COST" default:"vnlEl"`
	ColQuality  string `envconfig:"GLIDE_COL_QUALITY" default:"LwfgB"`
	ColSchedule string `envconfig:"GLIDE_COL_SCHEDULE" default:"FWPuu"`

	ColPricingEstimate        string `envconfig:"GLIDE_COL_PRICING_ESTIMATE" default:"dwtEW"`
	ColPricingEstimateSummary string `envconfig:"GLIDE_COL_PRICING_ESTIMATE_SUMMARY" default:"qcX9Z"`
}

type Sheets struct {
	Enabled      bool   `envconfig:"ENABLE_SHEETS_LOGGING" default:"true"`
	SheetID      string `envconfig:"LOG_SHEET_ID" default:""`
	Tab          string `envconfig:"LOG_SHEET_TAB" default:"Logs"`
	SAJSONB64    string `envconfig:"GOOGLE_SA_JSON_B64" default:""`
	MaxCellChars int    `envconfig:"MAX_CELL_CHARS" default:"50000"`
}

type Firestore struct {
	EventsCollection    string `envconfig:"FIRESTORE_EVENTS_COLLECTION" default:""`
	WritebackCollection string `envconfig:"FIRESTORE_WRITEBACK_COLLECTION" default:"rfq_responses"`
}

type Archive struct {
	Backend        string `envconfig:"ARCHIVE_BACKEND" default:""`
	Bucket         string `envconfig:"ARCHIVE_BUCKET" default:""`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:""`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY" default:""`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY" default:""`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"true"`
}

type Workflow struct {
	ID       string `envconfig:"WORKFLOW_ID" default:""`
	Location string `envconfig:"WORKFLOW_LOCATION" default:"us-central1"`
}

type Log struct {
	Level string `envconfig:"LOG_LEVEL" default:"INFO"`
	File  string `envconfig:"LOG_FILE" default:""`
}

type Prompts struct {
	PricingFile string `envconfig:"PROMPT_PRICING_FILE" default:""`
	SummaryFile string `envconfig:"PROMPT_SUMMARY_FILE" default:""`
}

// Load reads Settings from the environment and validates them.
func Load() (*Settings, error) {
	s := new(Settings)
	if err := envconfig.Process("", s); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects limits that would make the pipeline unbounded or stuck.
func (s *Settings) Validate() error {
	var errs []error
	positive := map[string]int64{
		"MAX_ATTACHMENT_BYTES":        s.Limits.MaxAttachmentBytes,
		"MAX_PDF_PAGES":               int64(s.Limits.MaxPDFPages),
		"MAX_EXCEL_ROWS":              int64(s.Limits.MaxExcelRows),
		"MAX_EXCEL_COLS":              int64(s.Limits.MaxExcelCols),
		"MAX_EXCEL_TABLES_PER_SHEET":  int64(s.Limits.MaxExcelTablesPerSheet),
		"ATTACHMENT_CONCURRENCY":      int64(s.Limits.AttachmentConcurrency),
		"MAX_QUEUE_SIZE":              int64(s.Queue.MaxQueueSize),
		"MAX_CONCURRENT_JOBS":         int64(s.Queue.MaxConcurrentJobs),
		"JOB_TIMEOUT_SEC":             int64(s.Queue.JobTimeoutSec),
		"DOCAI_TIMEOUT_SEC":           int64(s.DocAI.TimeoutSec),
		"MIN_PDF_TEXT_CHARS_PER_PAGE": int64(s.Limits.MinPDFTextCharsPerPage),
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	for _, st := range s.Limits.PDFScannedStages {
		switch strings.TrimSpace(st) {
		case "cloud_ocr", "page_images":
		default:
			errs = append(errs, fmt.Errorf("PDF_SCANNED_STAGES: unknown stage %q", st))
		}
	}
	return errors.Join(errs...)
}

func (q Queue) JobTimeout() time.Duration    { return time.Duration(q.JobTimeoutSec) * time.Second }
func (q Queue) ShutdownGrace() time.Duration { return time.Duration(q.ShutdownGraceSec) * time.Second }
func (d DocAI) Timeout() time.Duration       { return time.Duration(d.TimeoutSec) * time.Second }
func (l Limits) FetchTimeout() time.Duration { return time.Duration(l.FetchTimeoutSec) * time.Second }
