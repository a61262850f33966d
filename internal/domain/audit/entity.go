package audit

import (
	"strings"
	"time"
)

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity maps a model supplied value onto the enum. Unknown or empty
// values fall back to MEDIUM.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// ReportStatus enum
type ReportStatus string

const (
	StatusPass    ReportStatus = "PASS"
	StatusFail    ReportStatus = "FAIL"
	StatusUnknown ReportStatus = "UNKNOWN"
)

// ParseReportStatus maps a model supplied status. Empty or unrecognised
// values are treated as FAIL.
func ParseReportStatus(s string) ReportStatus {
	switch ReportStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPass:
		return StatusPass
	case StatusUnknown:
		return StatusUnknown
	default:
		return StatusFail
	}
}

// Phase of a workflow run.
type Phase string

const (
	PhaseIndexing Phase = "INDEXING"
	PhaseAuditing Phase = "AUDITING"
	PhaseDone     Phase = "DONE"
)

// DefaultReport is used when no node produced a summary.
const DefaultReport = "No report generated."

// ComplianceIssue is one violation reported by the classifier.
type ComplianceIssue struct {
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	Severity        Severity `json:"severity"`
	TimeStamp       *string  `json:"time_stamp,omitempty"`
	SubCategory     *string  `json:"sub_category,omitempty"`
	TargetGroup     *string  `json:"target_group,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	FlaggedText     *string  `json:"flagged_text,omitempty"`
	LegalReference  *string  `json:"legal_reference,omitempty"`
}

// State is the record threaded through one audit session. It is owned by a
// single workflow run and never shared between requests.
type State struct {
	SessionID string    `json:"session_id"`
	VideoURL  string    `json:"video_url"`
	VideoID   string    `json:"video_id"`
	StartedAt time.Time `json:"started_at"`
	Phase     Phase     `json:"-"`

	LocalFilePath string         `json:"-"`
	Transcript    string         `json:"transcript"`
	OCRText       []string       `json:"ocr_text"`
	VideoMetadata map[string]any `json:"video_meta_data"`

	ComplianceResults []ComplianceIssue `json:"compliance_results"`
	FinalReportStatus ReportStatus      `json:"final_report_status"`
	FinalReport       string            `json:"final_report"`
	Errors            []string          `json:"errors"`
}

// NewState creates the initial record for a session.
func NewState(sessionID, videoURL string, now time.Time) *State {
	videoID := sessionID
	if len(videoID) > 8 {
		videoID = videoID[:8]
	}
	return &State{
		SessionID:         sessionID,
		VideoURL:          videoURL,
		VideoID:           "vid_" + videoID,
		StartedAt:         now,
		Phase:             PhaseIndexing,
		OCRText:           []string{},
		VideoMetadata:     map[string]any{},
		ComplianceResults: []ComplianceIssue{},
		Errors:            []string{},
	}
}

// Finalize applies the defaults a completed run must carry.
func (s *State) Finalize() {
	if s.FinalReportStatus == "" {
		s.FinalReportStatus = StatusUnknown
	}
	if strings.TrimSpace(s.FinalReport) == "" {
		s.FinalReport = DefaultReport
	}
	s.Phase = PhaseDone
}
