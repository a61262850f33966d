package audit

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bryanwahyu/drishti/internal/application"
	domain "github.com/bryanwahyu/drishti/internal/domain/audit"
	"github.com/bryanwahyu/drishti/internal/logging"
)

const tracerName = "github.com/bryanwahyu/drishti/internal/application/audit"

// Workflow runs INDEXING then AUDITING over one session state.
// Workflow is safe for concurrent use; each Run owns its state.
type Workflow struct {
	Indexer Node
	Auditor Node
	Clock   application.Clock
	Tracer  trace.Tracer
}

func NewWorkflow(indexer, auditor Node) *Workflow {
	return &Workflow{
		Indexer: indexer,
		Auditor: auditor,
		Clock:   application.SystemClock{},
		Tracer:  otel.Tracer(tracerName),
	}
}

// NewSession creates a fresh state with a random session id.
func (w *Workflow) NewSession(videoURL string) *domain.State {
	return domain.NewState(uuid.NewString(), videoURL, w.Clock.Now())
}

// Audit is NewSession followed by Run. The state always reaches DONE; the
// error is the caller's context error when it ended mid-run.
func (w *Workflow) Audit(ctx context.Context, videoURL string) (*domain.State, error) {
	st := w.NewSession(videoURL)
	w.Run(ctx, st)
	return st, ctx.Err()
}

// Run drives st to DONE. Every failure, a node panic included, is recorded
// in st.Errors with status FAIL.
func (w *Workflow) Run(ctx context.Context, st *domain.State) {
	ctx = logging.WithSessionID(ctx, st.SessionID)
	log := logging.WithContext(ctx)

	ctx, span := w.Tracer.Start(ctx, "audit.workflow", trace.WithAttributes(
		attribute.String("audit.session_id", st.SessionID),
		attribute.String("audit.video_id", st.VideoID),
	))
	defer span.End()

	steps := []struct {
		phase domain.Phase
		node  Node
	}{
		{domain.PhaseIndexing, w.Indexer},
		{domain.PhaseAuditing, w.Auditor},
	}
	for _, step := range steps {
		st.Phase = step.phase
		log.Info("workflow transition", "phase", step.phase, "node", step.node.Name())

		st.Apply(w.runNode(ctx, step.node, *st).Update())
	}

	st.Finalize()
	span.SetAttributes(
		attribute.String("audit.status", string(st.FinalReportStatus)),
		attribute.Int("audit.issues", len(st.ComplianceResults)),
		attribute.Int("audit.errors", len(st.Errors)),
	)
	if st.FinalReportStatus == domain.StatusFail && len(st.Errors) > 0 {
		span.SetStatus(codes.Error, st.Errors[0])
	}
	log.Info("workflow finished", "status", st.FinalReportStatus, "issues", len(st.ComplianceResults), "errors", len(st.Errors))
}

func (w *Workflow) runNode(ctx context.Context, n Node, st domain.State) (res domain.Result) {
	ctx, span := w.Tracer.Start(ctx, "audit.node."+n.Name(), trace.WithAttributes(attribute.String("audit.phase", string(st.Phase))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logging.WithContext(ctx).Error("node panicked", "node", n.Name(), "panic", r, "stack", string(debug.Stack()))
			msg := fmt.Sprintf("node %s panicked: %v", n.Name(), r)
			span.SetStatus(codes.Error, msg)
			res = failed(st.Phase, msg)
		}
	}()

	res = n.Run(ctx, st)
	if u := res.Update(); len(u.Errors) > 0 {
		span.SetStatus(codes.Error, u.Errors[0])
	}
	return res
}

// failed builds the failure result of the node running in phase.
func failed(phase domain.Phase, msg string) domain.Result {
	f := &domain.Failure{Errors: []string{msg}}
	if phase == domain.PhaseIndexing {
		return domain.IngestResult{Failed: f}
	}
	return domain.ClassifyResult{Failed: f}
}
