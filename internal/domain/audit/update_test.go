package audit

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverwritesAndAppends(t *testing.T) {
	st := NewState("s1", "https://youtu.be/x", time.Now())
	st.Errors = []string{"earlier"}

	transcript := "hello"
	st.Apply(Update{
		Transcript:    &transcript,
		OCRText:       []string{"a", "b"},
		VideoMetadata: map[string]any{"duration": 12.0},
		Errors:        []string{"warn"},
	})
	st.Apply(ClassifyResult{Ok: &Classified{
		Issues: []ComplianceIssue{{Category: "Communal Incitement", Severity: SeverityHigh}},
		Status: StatusFail,
		Report: "one issue",
	}}.Update())

	assert.Equal(t, "hello", st.Transcript)
	assert.Equal(t, []string{"a", "b"}, st.OCRText)
	assert.Equal(t, 12.0, st.VideoMetadata["duration"])
	assert.Equal(t, []string{"earlier", "warn"}, st.Errors)
	require.Len(t, st.ComplianceResults, 1)
	assert.Equal(t, StatusFail, st.FinalReportStatus)
	assert.Equal(t, "one issue", st.FinalReport)
}

func TestIngestFailureClearsTranscript(t *testing.T) {
	st := NewState("s1", "https://youtu.be/x", time.Now())
	st.Transcript = "stale"
	st.LocalFilePath = "/tmp/x.mp4"

	st.Apply(IngestResult{Failed: &Failure{Errors: []string{"indexer: boom"}}}.Update())

	assert.Empty(t, st.Transcript)
	assert.NotNil(t, st.OCRText)
	assert.Empty(t, st.OCRText)
	assert.Empty(t, st.LocalFilePath)
	assert.Equal(t, StatusFail, st.FinalReportStatus)
	assert.Equal(t, []string{"indexer: boom"}, st.Errors)
}

func TestIngestSuccessLeavesStatusUnset(t *testing.T) {
	st := NewState("s1", "https://youtu.be/x", time.Now())
	st.Apply(IngestResult{Ok: &Ingested{Transcript: "t"}}.Update())

	assert.Equal(t, "t", st.Transcript)
	assert.Equal(t, ReportStatus(""), st.FinalReportStatus)
	assert.NotNil(t, st.OCRText)

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ocr_text":[]`)
}

func TestClassifyFailureKeepsPriorErrors(t *testing.T) {
	st := NewState("s1", "https://youtu.be/x", time.Now())
	st.Apply(Update{Errors: []string{"ingest warning"}})
	st.Apply(ClassifyResult{Failed: &Failure{Errors: []string{"parse"}}}.Update())

	assert.Equal(t, []string{"ingest warning", "parse"}, st.Errors)
	assert.Equal(t, StatusFail, st.FinalReportStatus)
}

func TestAccumulatorsNeverShrink(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("errors and results are the concatenation of updates", prop.ForAll(
		func(batches [][]string, withStatus []bool) bool {
			st := NewState("s", "u", time.Time{})
			var wantErrors []string
			wantIssues := 0
			for i, batch := range batches {
				before := len(st.Errors)
				beforeIssues := len(st.ComplianceResults)

				issues := make([]ComplianceIssue, len(batch))
				u := Update{Errors: batch, ComplianceResults: issues}
				if i < len(withStatus) && withStatus[i] {
					s := StatusPass
					u.FinalReportStatus = &s
				}
				st.Apply(u)

				wantErrors = append(wantErrors, batch...)
				wantIssues += len(batch)
				if len(st.Errors) < before || len(st.ComplianceResults) < beforeIssues {
					return false
				}
			}
			if len(st.ComplianceResults) != wantIssues || len(st.Errors) != len(wantErrors) {
				return false
			}
			for i := range wantErrors {
				if st.Errors[i] != wantErrors[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.AlphaString())),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewError(ErrTransfer, "upload", cause)

	assert.ErrorIs(t, err, ErrTransfer)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.Equal(t, "upload: transfer error: dial tcp: refused", err.Error())

	bare := NewError(ErrTimeout, "wait", nil)
	assert.Equal(t, "wait: timeout error", bare.Error())
}
