package audit

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/drishti/internal/domain/audit"
	"github.com/bryanwahyu/drishti/internal/infra/ai/prompt"
	"github.com/bryanwahyu/drishti/internal/logging"
)

// SkippedReport is the final report when indexing produced no transcript.
const SkippedReport = "Audit skipped: no transcript was extracted from the video."

// DefaultTopK is the number of rule passages handed to the model.
const DefaultTopK = 3

// Node is one step of the workflow. Run never returns an error; failures are
// carried inside the Result.
type Node interface {
	Name() string
	Run(ctx context.Context, st domain.State) domain.Result
}

// IndexerNode downloads the video, pushes it through the remote indexer and
// extracts its text.
type IndexerNode struct {
	Downloader domain.Downloader
	Indexer    domain.VideoIndexer
}

func (n *IndexerNode) Name() string { return "indexer" }

func (n *IndexerNode) Run(ctx context.Context, st domain.State) domain.Result {
	log := logging.WithContext(ctx)
	log.Info("indexer started", "video_url", st.VideoURL)

	art, err := n.Downloader.Download(ctx, st.VideoURL, st.SessionID)
	if err != nil {
		return ingestFailed(ctx, err)
	}
	// file lokal selalu dihapus, apapun hasilnya
	defer func() {
		if err := art.Close(); err != nil {
			log.Warn("failed to remove local video", "path", art.Path, "error", err)
		}
	}()

	remoteID, err := n.Indexer.Upload(ctx, art.Path, st.VideoID)
	if err != nil {
		return ingestFailed(ctx, err)
	}
	// free disk before the long wait
	if err := art.Close(); err != nil {
		log.Warn("failed to remove local video", "path", art.Path, "error", err)
	}

	insights, err := n.Indexer.WaitForProcessing(ctx, remoteID)
	if err != nil {
		return ingestFailed(ctx, err)
	}
	out := insights.Extract()
	if strings.TrimSpace(out.Transcript) == "" {
		log.Warn("no transcript extracted, check the video audio", "indexer_video_id", remoteID)
	}
	log.Info("indexer finished", "indexer_video_id", remoteID, "transcript_chars", len(out.Transcript), "ocr_lines", len(out.OCRText))
	return domain.IngestResult{Ok: &out}
}

func ingestFailed(ctx context.Context, err error) domain.IngestResult {
	logging.WithContext(ctx).Error("indexer failed", "error", err)
	return domain.IngestResult{Failed: &domain.Failure{Errors: []string{"indexing failed: " + err.Error()}}}
}

// AuditorNode retrieves rules and asks the model for a classification.
type AuditorNode struct {
	Retriever domain.Retriever
	Model     domain.ChatModel
	TopK      int
}

func (n *AuditorNode) Name() string { return "auditor" }

func (n *AuditorNode) Run(ctx context.Context, st domain.State) domain.Result {
	log := logging.WithContext(ctx)

	if strings.TrimSpace(st.Transcript) == "" {
		log.Info("auditor skipped, empty transcript")
		return domain.ClassifyResult{Ok: &domain.Classified{
			Issues: []domain.ComplianceIssue{},
			Status: domain.StatusFail,
			Report: SkippedReport,
		}}
	}

	k := n.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	rules, err := n.Retriever.Search(ctx, BuildQuery(st.Transcript, st.OCRText), k)
	if err != nil {
		return classifyFailed(ctx, err)
	}
	log.Info("rules retrieved", "count", len(rules))

	raw, err := n.Model.Complete(ctx, prompt.SystemPrompt(rules), prompt.UserPrompt(st.VideoMetadata, st.Transcript, st.OCRText))
	if err != nil {
		return classifyFailed(ctx, err)
	}

	report, err := ParseReport(raw)
	if err != nil {
		return classifyFailed(ctx, err)
	}
	log.Info("auditor finished", "status", report.Status, "issues", len(report.Issues))
	return domain.ClassifyResult{Ok: &report}
}

func classifyFailed(ctx context.Context, err error) domain.ClassifyResult {
	logging.WithContext(ctx).Error("auditor failed", "error", err)
	return domain.ClassifyResult{Failed: &domain.Failure{Errors: []string{fmt.Sprintf("audit failed: %v", err)}}}
}

// BuildQuery is the retrieval query: transcript then OCR lines, newline separated.
func BuildQuery(transcript string, ocr []string) string {
	parts := make([]string, 0, len(ocr)+1)
	if t := strings.TrimSpace(transcript); t != "" {
		parts = append(parts, t)
	}
	for _, line := range ocr {
		if l := strings.TrimSpace(line); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "\n")
}
