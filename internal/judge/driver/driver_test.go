package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fouguai/judgeworker/internal/judge/profile"
	"github.com/fouguai/judgeworker/internal/judge/runner"
)

type scriptedRunner struct {
	calls   int
	results []runner.ExecutionResult
}

func (r *scriptedRunner) Run(ctx context.Context, in runner.Input) runner.ExecutionResult {
	res := r.results[r.calls]
	r.calls++
	if res.Verdict == runner.Accepted {
		os.WriteFile(in.OutputPath, []byte("ok\n"), 0o644)
	}
	return res
}

func setupProblem(t *testing.T, dataDir, problemID string, cases int) {
	t.Helper()
	dir := filepath.Join(dataDir, problemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= cases; i++ {
		os.WriteFile(filepath.Join(dir, itoa(i)+"_in.txt"), []byte("in\n"), 0o644)
		os.WriteFile(filepath.Join(dir, itoa(i)+"_out.txt"), []byte("ok\n"), 0o644)
	}
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func newTestDriver(t *testing.T, results []runner.ExecutionResult) (*Driver, *scriptedRunner) {
	t.Helper()
	dataDir := t.TempDir()
	workDir := t.TempDir()
	rnr := &scriptedRunner{results: results}
	d := &Driver{
		Profiles: profile.Default(),
		Runner:   rnr,
		DataDir:  dataDir,
		WorkDir:  workDir,
	}
	return d, rnr
}

func TestJudgeUnsupportedLanguage(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	out := d.Judge(context.Background(), Submission{ID: "s1", Language: "cobol", TestCaseCount: 1})
	if out.Verdict != runner.InternalError {
		t.Fatalf("verdict = %v, want InternalError", out.Verdict)
	}
}

func TestJudgeNoTestCases(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	out := d.Judge(context.Background(), Submission{ID: "s1", Language: "python", Source: []byte("print(1)"), TestCaseCount: 0})
	if out.Verdict != runner.InternalError {
		t.Fatalf("verdict = %v, want InternalError", out.Verdict)
	}
}

func TestJudgeAcceptedAggregatesMaxima(t *testing.T) {
	d, rnr := newTestDriver(t, []runner.ExecutionResult{
		{Verdict: runner.Accepted, TimeMs: 10, MemoryKB: 1000},
		{Verdict: runner.Accepted, TimeMs: 30, MemoryKB: 500},
	})
	setupProblem(t, d.DataDir, "p1", 2)

	out := d.Judge(context.Background(), Submission{
		ID: "s1", Language: "python", Source: []byte("print('ok')"),
		ProblemID: "p1", TestCaseCount: 2, TimeLimitS: 1, MemoryLimitMB: 64,
	})

	if out.Verdict != runner.Accepted {
		t.Fatalf("verdict = %v, want Accepted", out.Verdict)
	}
	if out.MaxTimeMs != 30 || out.MaxMemoryKB != 1000 {
		t.Fatalf("maxima = (%d, %d), want (30, 1000)", out.MaxTimeMs, out.MaxMemoryKB)
	}
	if rnr.calls != 2 {
		t.Fatalf("calls = %d, want 2", rnr.calls)
	}

	// Property 3: idempotent cleanup.
	remaining, _ := os.ReadDir(d.WorkDir)
	if len(remaining) != 0 {
		t.Fatalf("work dir not clean: %v", remaining)
	}
}

func TestJudgeShortCircuitsOnFirstFailure(t *testing.T) {
	d, rnr := newTestDriver(t, []runner.ExecutionResult{
		{Verdict: runner.Accepted, TimeMs: 5, MemoryKB: 100},
		{Verdict: runner.RuntimeError, TimeMs: 8, MemoryKB: 200, StderrExcerpt: "segmentation fault"},
		{Verdict: runner.Accepted, TimeMs: 1000, MemoryKB: 1000},
	})
	setupProblem(t, d.DataDir, "p1", 3)

	out := d.Judge(context.Background(), Submission{
		ID: "s1", Language: "python", Source: []byte("..."),
		ProblemID: "p1", TestCaseCount: 3, TimeLimitS: 1, MemoryLimitMB: 64,
	})

	if out.Verdict != runner.RuntimeError {
		t.Fatalf("verdict = %v, want RuntimeError", out.Verdict)
	}
	if out.MaxTimeMs != 8 {
		t.Fatalf("max_time_ms = %d, want 8 (case 3 must not run)", out.MaxTimeMs)
	}
	if rnr.calls != 2 {
		t.Fatalf("calls = %d, want 2 (case 3 must not run)", rnr.calls)
	}
	if out.ErrorExcerpt == "" {
		t.Fatal("expected stderr excerpt on RuntimeError")
	}
}

func TestJudgeMissingTestCaseFile(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	// No files created under DataDir/p1.
	out := d.Judge(context.Background(), Submission{
		ID: "s1", Language: "python", Source: []byte("print(1)"),
		ProblemID: "p1", TestCaseCount: 1, TimeLimitS: 1, MemoryLimitMB: 64,
	})
	if out.Verdict != runner.InternalError {
		t.Fatalf("verdict = %v, want InternalError", out.Verdict)
	}
}
