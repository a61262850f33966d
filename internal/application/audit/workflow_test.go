package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/drishti/internal/domain/audit"
)

type fakeDownloader struct {
	dir string
	err error
}

func (f *fakeDownloader) Download(_ context.Context, _, sessionID string) (*domain.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	dir, err := os.MkdirTemp(f.dir, sessionID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		return nil, err
	}
	return domain.NewArtifact(path, func() error { return os.RemoveAll(dir) }), nil
}

type staticInsights domain.Ingested

func (s staticInsights) Extract() domain.Ingested { return domain.Ingested(s) }

type fakeIndexer struct {
	insights   domain.Ingested
	uploadErr  error
	waitErr    error
	uploaded   []string
	fileExists bool
}

func (f *fakeIndexer) Upload(_ context.Context, localPath, name string) (string, error) {
	_, err := os.Stat(localPath)
	f.fileExists = err == nil
	f.uploaded = append(f.uploaded, name)
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "remote-1", nil
}

func (f *fakeIndexer) WaitForProcessing(context.Context, string) (domain.Insights, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return staticInsights(f.insights), nil
}

type fakeRetriever struct {
	rules   []string
	err     error
	queries []string
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ int) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.rules, f.err
}

type fakeModel struct {
	answer string
	err    error
	calls  int
	system string
}

func (f *fakeModel) Complete(_ context.Context, system, _ string) (string, error) {
	f.calls++
	f.system = system
	return f.answer, f.err
}

type panicNode struct{}

func (panicNode) Name() string { return "boom" }

func (panicNode) Run(context.Context, domain.State) domain.Result { panic("kaboom") }

type fixture struct {
	downloader *fakeDownloader
	indexer    *fakeIndexer
	retriever  *fakeRetriever
	model      *fakeModel
	workflow   *Workflow
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		downloader: &fakeDownloader{dir: t.TempDir()},
		indexer: &fakeIndexer{insights: domain.Ingested{
			Transcript:    "some speech",
			OCRText:       []string{"BANNER"},
			VideoMetadata: map[string]any{"platform": "youtube"},
		}},
		retriever: &fakeRetriever{rules: []string{"IPC 153A"}},
		model:     &fakeModel{answer: `{"compliance_results": [{"category": "Communal Incitement", "severity": "HIGH", "description": "incites"}], "status": "FAIL", "final_report": "One violation."}`},
	}
	f.workflow = NewWorkflow(
		&IndexerNode{Downloader: f.downloader, Indexer: f.indexer},
		&AuditorNode{Retriever: f.retriever, Model: f.model},
	)
	return f
}

func TestWorkflowHappyPath(t *testing.T) {
	f := newFixture(t)
	st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseDone, st.Phase)
	assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
	assert.Equal(t, "One violation.", st.FinalReport)
	require.Len(t, st.ComplianceResults, 1)
	assert.Equal(t, domain.SeverityHigh, st.ComplianceResults[0].Severity)
	assert.Empty(t, st.Errors)
	assert.Empty(t, st.LocalFilePath)
	assert.Equal(t, []string{st.VideoID}, f.indexer.uploaded)
	assert.True(t, f.indexer.fileExists)
	assert.Equal(t, []string{"some speech\nBANNER"}, f.retriever.queries)
	assert.Contains(t, f.model.system, "IPC 153A")

	entries, err := os.ReadDir(f.downloader.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "local artifact must be released")
}

func TestWorkflowFencedPass(t *testing.T) {
	f := newFixture(t)
	f.model.answer = "```json\n{\"compliance_results\": [], \"status\": \"PASS\", \"final_report\": \"Clean.\"}\n```"

	st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, st.FinalReportStatus)
	assert.Equal(t, []domain.ComplianceIssue{}, st.ComplianceResults)
	assert.Empty(t, st.Errors)
}

func TestWorkflowEmptyTranscriptSkipsModel(t *testing.T) {
	f := newFixture(t)
	f.indexer.insights = domain.Ingested{OCRText: []string{"BANNER"}}

	st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Zero(t, f.model.calls)
	assert.Empty(t, f.retriever.queries)
	assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
	assert.Equal(t, SkippedReport, st.FinalReport)
	assert.Empty(t, st.Errors)
}

func TestWorkflowInvalidModelJSON(t *testing.T) {
	f := newFixture(t)
	f.model.answer = "Sorry, I cannot help with that."

	st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
	assert.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "parse error")
	assert.Equal(t, domain.DefaultReport, st.FinalReport)
}

func TestWorkflowIndexingFailureStillTerminates(t *testing.T) {
	cases := map[string]func(f *fixture){
		"download": func(f *fixture) { f.downloader.err = domain.Errorf(domain.ErrTransfer, "download", "yt-dlp exited 1") },
		"upload":   func(f *fixture) { f.indexer.uploadErr = domain.Errorf(domain.ErrAuth, "upload", "status 401") },
		"wait":     func(f *fixture) { f.indexer.waitErr = domain.Errorf(domain.ErrProcessing, "wait", "content policy violation") },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			setup(f)

			st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseDone, st.Phase)
			assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
			assert.Equal(t, SkippedReport, st.FinalReport)
			require.Len(t, st.Errors, 1)
			assert.Contains(t, st.Errors[0], "indexing failed")
			assert.Zero(t, f.model.calls)

			entries, err := os.ReadDir(f.downloader.dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestWorkflowRetrievalAndModelFailures(t *testing.T) {
	f := newFixture(t)
	f.retriever.err = domain.NewError(domain.ErrRetrieval, "retrieve", errors.New("index down"))
	st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
	require.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "index down")
	assert.Zero(t, f.model.calls)

	f = newFixture(t)
	f.model.err = domain.NewError(domain.ErrModelInvocation, "complete", errors.New("429"))
	st, err = f.workflow.Audit(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
	require.Len(t, st.Errors, 1)
	assert.Equal(t, 1, f.model.calls)
}

func TestWorkflowRecoversNodePanic(t *testing.T) {
	t.Run("auditor", func(t *testing.T) {
		f := newFixture(t)
		f.workflow.Auditor = panicNode{}

		st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDone, st.Phase)
		assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
		assert.Equal(t, []string{"node boom panicked: kaboom"}, st.Errors)
		assert.NotEmpty(t, st.Transcript, "indexer output survives")
	})

	t.Run("indexer", func(t *testing.T) {
		f := newFixture(t)
		f.workflow.Indexer = panicNode{}

		st, err := f.workflow.Audit(context.Background(), "https://youtu.be/abc")
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDone, st.Phase)
		assert.Equal(t, domain.StatusFail, st.FinalReportStatus)
		assert.Equal(t, SkippedReport, st.FinalReport)
		assert.Equal(t, []string{"node boom panicked: kaboom"}, st.Errors)
		assert.Zero(t, f.model.calls)
	})
}

func TestAuditReportsCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := f.workflow.Audit(ctx, "https://youtu.be/abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.PhaseDone, st.Phase)
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	wf := NewWorkflow(
		&IndexerNode{Downloader: f.downloader, Indexer: &concurrentIndexer{}},
		&AuditorNode{Retriever: noRules{}, Model: constModel(`{"status":"PASS","compliance_results":[]}`)},
	)

	const n = 10
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		states []*domain.State
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := wf.Audit(context.Background(), "https://youtu.be/abc")
			assert.NoError(t, err)
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sessions := map[string]bool{}
	videos := map[string]bool{}
	for _, st := range states {
		sessions[st.SessionID] = true
		videos[st.VideoID] = true
		assert.Equal(t, domain.StatusPass, st.FinalReportStatus)
		assert.Equal(t, "speech for "+st.VideoID, st.Transcript)
	}
	assert.Len(t, sessions, n)
	assert.Len(t, videos, n)
}

// concurrentIndexer echoes the uploaded name into the transcript.
type concurrentIndexer struct{}

func (concurrentIndexer) Upload(_ context.Context, _, name string) (string, error) { return name, nil }
func (concurrentIndexer) WaitForProcessing(_ context.Context, id string) (domain.Insights, error) {
	return staticInsights(domain.Ingested{Transcript: "speech for " + id}), nil
}

type noRules struct{}

func (noRules) Search(context.Context, string, int) ([]string, error) { return []string{}, nil }

type constModel string

func (m constModel) Complete(context.Context, string, string) (string, error) { return string(m), nil }

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "speech\nline one\nline two", BuildQuery(" speech ", []string{"line one", "", "line two"}))
	assert.Equal(t, "", BuildQuery("", nil))
}
