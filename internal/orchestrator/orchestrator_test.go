package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/enrich"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

func fixture(t *testing.T) []byte {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(filename))), "testdata", "bw_report.html")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func testOptions() Options {
	cfg := report.DefaultConfig()
	cfg.Location = time.UTC
	return Options{Profile: "standard", Report: cfg, Quiet: true}
}

// mockEnricher records calls and tags results.
type mockEnricher struct {
	err error
}

func (m *mockEnricher) Enrich(ctx context.Context, r *model.AnalysisResult, files []enrich.RawFile) (*model.AnalysisResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := *r
	out.AnalysisType = model.AnalysisAI
	return &out, nil
}

func TestOrchestratorRunPreservesOrder(t *testing.T) {
	data := fixture(t)
	inputs := []Input{
		{Name: "a.html", Data: data},
		{Name: "broken.html", Data: []byte("<html><body><p>nothing here</p></body></html>")},
		{Name: "c.html", Data: data},
	}

	outcomes, err := New(testOptions()).Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for i, in := range inputs {
		if outcomes[i].Name != in.Name {
			t.Errorf("outcome %d name = %q, want %q", i, outcomes[i].Name, in.Name)
		}
	}
	if outcomes[0].Result == nil || outcomes[2].Result == nil {
		t.Fatal("valid reports should produce results")
	}
	if !errors.Is(outcomes[1].Err, report.ErrUnrecognizedReport) {
		t.Errorf("broken report err = %v, want ErrUnrecognizedReport", outcomes[1].Err)
	}
	if outcomes[0].Result.HealthScore != outcomes[2].Result.HealthScore {
		t.Error("identical reports should score identically")
	}
}

func TestOrchestratorAllFailed(t *testing.T) {
	inputs := []Input{{Name: "x.html", Data: []byte("<html></html>")}}
	outcomes, err := New(testOptions()).Run(context.Background(), inputs)
	if err == nil {
		t.Fatal("expected error when every report fails")
	}
	if !errors.Is(err, report.ErrUnrecognizedReport) {
		t.Errorf("err = %v, want wrapped ErrUnrecognizedReport", err)
	}
	if len(outcomes) != 1 {
		t.Errorf("outcomes should still be returned, got %d", len(outcomes))
	}
}

func TestOrchestratorNoInputs(t *testing.T) {
	if _, err := New(testOptions()).Run(context.Background(), nil); err == nil {
		t.Error("expected error for empty input list")
	}
}

func TestOrchestratorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := New(testOptions()).Run(ctx, []Input{{Name: "a.html", Data: fixture(t)}})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(outcomes[0].Err, context.Canceled) {
		t.Errorf("outcome err = %v, want context.Canceled", outcomes[0].Err)
	}
}

func TestOrchestratorEnrich(t *testing.T) {
	opts := testOptions()
	opts.Enricher = &mockEnricher{}
	outcomes, err := New(opts).Run(context.Background(), []Input{{Name: "a.html", Data: fixture(t)}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcomes[0].Result.AnalysisType != model.AnalysisAI {
		t.Error("enricher output should replace the parsed result")
	}

	// A failing enricher keeps the parsed result.
	opts.Enricher = &mockEnricher{err: errors.New("offline")}
	outcomes, err = New(opts).Run(context.Background(), []Input{{Name: "a.html", Data: fixture(t)}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcomes[0].Result == nil || outcomes[0].Result.AnalysisType != model.AnalysisLocal {
		t.Error("parsed result should survive enrichment failure")
	}
}

func TestOrchestratorDeepProfileEnriches(t *testing.T) {
	opts := testOptions()
	opts.Profile = "deep"
	outcomes, err := New(opts).Run(context.Background(), []Input{{Name: "a.html", Data: fixture(t)}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := outcomes[0].Result
	if r.AISummary == nil || r.AIContext == nil {
		t.Error("deep profile should run the local enricher")
	}
}

func TestOrchestratorKeepsConfiguredSizes(t *testing.T) {
	for _, profile := range ProfileNames() {
		t.Run(profile, func(t *testing.T) {
			opts := testOptions()
			opts.Profile = profile
			opts.Report.TopN = 2
			opts.Report.SnippetLines = 1

			outcomes, err := New(opts).Run(context.Background(), []Input{{Name: "a.html", Data: fixture(t)}})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			r := outcomes[0].Result
			if got := len(r.TopProcessesByJobs); got != 2 {
				t.Errorf("TopProcessesByJobs = %d entries, want 2", got)
			}
			if got := len(r.TopActivitiesByTime); got > 2 {
				t.Errorf("TopActivitiesByTime = %d entries, want at most 2", got)
			}
			if r.DetailedThreadReport == nil || len(r.DetailedThreadReport.ProblematicThreads) == 0 {
				t.Fatal("expected flagged threads in the fixture")
			}
			for _, th := range r.DetailedThreadReport.ProblematicThreads {
				if strings.Contains(th.StackTraceSnippet, "\n") {
					t.Errorf("thread %q snippet has more than one line:\n%s", th.ThreadName, th.StackTraceSnippet)
				}
			}
		})
	}
}
