package videoindexer

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bryanwahyu/drishti/internal/domain/audit"
)

type textEntry struct {
	Text string `json:"text"`
}

// VideoIndex is the subset of the Index payload the auditor reads.
type VideoIndex struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Videos []struct {
		ID       string `json:"id"`
		Language string `json:"language"`
		Insights struct {
			SourceLanguage string      `json:"sourceLanguage"`
			Transcript     []textEntry `json:"transcript"`
			OCR            []textEntry `json:"ocr"`
		} `json:"insights"`
	} `json:"videos"`
	SummarizedInsights struct {
		Duration struct {
			Seconds *float64 `json:"seconds"`
		} `json:"duration"`
		Transcript []textEntry `json:"transcript"`
	} `json:"summarizedInsights"`
}

// Extract implements audit.Insights.
func (v *VideoIndex) Extract() audit.Ingested {
	return ExtractData(v)
}

// ExtractData flattens an index into transcript, OCR lines and metadata.
// Missing structure yields empty output, never an error.
func ExtractData(v *VideoIndex) audit.Ingested {
	out := audit.Ingested{
		OCRText:       []string{},
		VideoMetadata: map[string]any{"platform": "youtube", "duration": nil},
	}
	if v == nil {
		return out
	}

	// Only the first video carries the audited upload's insights.
	var transcript []string
	if len(v.Videos) > 0 {
		transcript = appendText(transcript, v.Videos[0].Insights.Transcript)
		out.OCRText = appendText(out.OCRText, v.Videos[0].Insights.OCR)
	}
	if len(transcript) == 0 {
		transcript = appendText(transcript, v.SummarizedInsights.Transcript)
	}
	out.Transcript = strings.Join(transcript, " ")

	if s := v.SummarizedInsights.Duration.Seconds; s != nil {
		out.VideoMetadata["duration"] = *s
	}
	if v.ID != "" {
		out.VideoMetadata["indexer_video_id"] = v.ID
	}
	if len(v.Videos) > 0 {
		lang := v.Videos[0].Insights.SourceLanguage
		if lang == "" {
			lang = v.Videos[0].Language
		}
		if lang != "" {
			out.VideoMetadata["language"] = lang
		}
	}
	return out
}

func appendText(dst []string, entries []textEntry) []string {
	for _, e := range entries {
		if t := clean(e.Text); t != "" {
			dst = append(dst, t)
		}
	}
	return dst
}

// clean NFC-normalizes s and collapses runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
