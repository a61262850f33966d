package audit

// Update is a partial write a node hands back to the workflow. Nil fields are
// left alone; ComplianceResults and Errors are appended, every other set
// field overwrites.
type Update struct {
	LocalFilePath *string
	Transcript    *string
	OCRText       []string
	VideoMetadata map[string]any

	ComplianceResults []ComplianceIssue
	FinalReportStatus *ReportStatus
	FinalReport       *string
	Errors            []string
}

// Apply merges u into s.
func (s *State) Apply(u Update) {
	if u.LocalFilePath != nil {
		s.LocalFilePath = *u.LocalFilePath
	}
	if u.Transcript != nil {
		s.Transcript = *u.Transcript
	}
	if u.OCRText != nil {
		s.OCRText = append(make([]string, 0, len(u.OCRText)), u.OCRText...)
	}
	if u.VideoMetadata != nil {
		meta := make(map[string]any, len(u.VideoMetadata))
		for k, v := range u.VideoMetadata {
			meta[k] = v
		}
		s.VideoMetadata = meta
	}
	if u.FinalReportStatus != nil {
		s.FinalReportStatus = *u.FinalReportStatus
	}
	if u.FinalReport != nil {
		s.FinalReport = *u.FinalReport
	}
	s.ComplianceResults = append(s.ComplianceResults, u.ComplianceResults...)
	s.Errors = append(s.Errors, u.Errors...)
}

// Result is what a workflow node returns.
type Result interface {
	Update() Update
}

// Failure carries the diagnostics of a node that could not finish.
type Failure struct {
	Errors []string
}

// Ingested is the successful output of the indexing node.
type Ingested struct {
	Transcript    string
	OCRText       []string
	VideoMetadata map[string]any
}

// IngestResult is either Ok or Failed.
type IngestResult struct {
	Ok     *Ingested
	Failed *Failure
}

// Update implements Result. A failed ingestion sets FAIL and leaves the
// transcript empty so the auditor short-circuits.
func (r IngestResult) Update() Update {
	if r.Failed != nil {
		empty := ""
		return Update{
			LocalFilePath:     &empty,
			Transcript:        &empty,
			OCRText:           []string{},
			FinalReportStatus: statusPtr(StatusFail),
			Errors:            r.Failed.Errors,
		}
	}
	if r.Ok == nil {
		return Update{}
	}
	cleared := ""
	transcript := r.Ok.Transcript
	ocr := r.Ok.OCRText
	if ocr == nil {
		ocr = []string{}
	}
	meta := r.Ok.VideoMetadata
	if meta == nil {
		meta = map[string]any{}
	}
	return Update{
		LocalFilePath: &cleared,
		Transcript:    &transcript,
		OCRText:       ocr,
		VideoMetadata: meta,
	}
}

// Classified is the successful output of the auditor node.
type Classified struct {
	Issues []ComplianceIssue
	Status ReportStatus
	Report string
}

// ClassifyResult is either Ok or Failed.
type ClassifyResult struct {
	Ok     *Classified
	Failed *Failure
}

// Update implements Result.
func (r ClassifyResult) Update() Update {
	if r.Failed != nil {
		return Update{
			FinalReportStatus: statusPtr(StatusFail),
			Errors:            r.Failed.Errors,
		}
	}
	if r.Ok == nil {
		return Update{}
	}
	report := r.Ok.Report
	return Update{
		ComplianceResults: r.Ok.Issues,
		FinalReportStatus: statusPtr(r.Ok.Status),
		FinalReport:       &report,
	}
}

func statusPtr(s ReportStatus) *ReportStatus { return &s }
