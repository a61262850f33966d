package audit

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	domain "github.com/bryanwahyu/drishti/internal/domain/audit"
)

const reportSchemaURL = "https://drishti.schemas.local/audit/report.schema.json"

// reportSchemaJSON is the output contract. Every field is optional so a
// sparse answer still parses; only wrong types are rejected.
const reportSchemaJSON = `{
  "type": "object",
  "properties": {
    "compliance_results": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "category":         {"type": ["string", "null"]},
          "sub_category":     {"type": ["string", "null"]},
          "severity":         {"type": ["string", "null"]},
          "description":      {"type": ["string", "null"]},
          "flagged_text":     {"type": ["string", "null"]},
          "time_stamp":       {"type": ["string", "null"]},
          "target_group":     {"type": ["string", "null"]},
          "legal_reference":  {"type": ["string", "null"]},
          "confidence_score": {"type": ["number", "string", "null"]}
        }
      }
    },
    "status":       {"type": ["string", "null"]},
    "final_report": {"type": ["string", "null"]}
  }
}`

var (
	fenceRe      = regexp.MustCompile("(?s)```[A-Za-z]*\\s*(.*?)```")
	reportSchema = mustCompileSchema()
)

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(reportSchemaURL, strings.NewReader(reportSchemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile(reportSchemaURL)
}

type rawIssue struct {
	Category        *string  `json:"category"`
	SubCategory     *string  `json:"sub_category"`
	Severity        *string  `json:"severity"`
	Description     *string  `json:"description"`
	FlaggedText     *string  `json:"flagged_text"`
	TimeStamp       *string  `json:"time_stamp"`
	TargetGroup     *string  `json:"target_group"`
	LegalReference  *string  `json:"legal_reference"`
	ConfidenceScore score    `json:"confidence_score"`
}

// score takes a JSON number or a numeric string such as "0.9". Anything
// else decodes to no score.
type score struct{ v *float64 }

func (s *score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		s.v = &n
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		s.v = &f
	}
	return nil
}

type rawReport struct {
	ComplianceResults []rawIssue `json:"compliance_results"`
	Status            *string    `json:"status"`
	FinalReport       *string    `json:"final_report"`
}

// ExtractJSON returns the body of the first fenced block, or raw unchanged
// when there is none.
func ExtractJSON(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// ParseReport coerces a model answer into a classification.
func ParseReport(raw string) (domain.Classified, error) {
	const op = "parse report"
	payload := []byte(ExtractJSON(raw))

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.Classified{}, domain.NewError(domain.ErrParse, op, err)
	}
	if err := reportSchema.Validate(doc); err != nil {
		return domain.Classified{}, domain.NewError(domain.ErrParse, op, err)
	}
	var r rawReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return domain.Classified{}, domain.NewError(domain.ErrParse, op, err)
	}

	issues := make([]domain.ComplianceIssue, 0, len(r.ComplianceResults))
	for _, ri := range r.ComplianceResults {
		issue := domain.ComplianceIssue{
			Category:       valueOr(ri.Category, "Unknown"),
			Description:    valueOr(ri.Description, ""),
			Severity:       domain.ParseSeverity(valueOr(ri.Severity, "")),
			TimeStamp:      optional(ri.TimeStamp),
			SubCategory:    optional(ri.SubCategory),
			TargetGroup:    optional(ri.TargetGroup),
			FlaggedText:    optional(ri.FlaggedText),
			LegalReference: optional(ri.LegalReference),
		}
		if s := ri.ConfidenceScore.v; s != nil && *s >= 0 && *s <= 1 {
			score := *s
			issue.ConfidenceScore = &score
		}
		issues = append(issues, issue)
	}

	return domain.Classified{
		Issues: issues,
		Status: domain.ParseReportStatus(valueOr(r.Status, "")),
		Report: valueOr(r.FinalReport, domain.DefaultReport),
	}, nil
}

func valueOr(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}
