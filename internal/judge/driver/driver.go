// Package driver implements the Judge Driver: it orchestrates one
// submission end to end — source write-out, compilation, the per-test-case
// loop, verdict aggregation, and guaranteed cleanup on every exit path.
package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/fouguai/judgeworker/internal/errs"
	"github.com/fouguai/judgeworker/internal/judge/profile"
	"github.com/fouguai/judgeworker/internal/judge/runner"
	"github.com/fouguai/judgeworker/internal/logging"
)

// compileErrExcerptBytes bounds the compiler diagnostic carried in a
// CompilationError outcome.
const compileErrExcerptBytes = 4 * 1024

// Submission is the immutable unit of work the driver judges.
type Submission struct {
	ID            string
	Language      string
	Source        []byte
	ProblemID     string
	TestCaseCount int
	TimeLimitS    float64
	MemoryLimitMB int
}

// Outcome is the aggregated result of judging a Submission.
type Outcome struct {
	ID           string
	Verdict      runner.Verdict
	MaxTimeMs    int64
	MaxMemoryKB  int64
	ErrorExcerpt string
	// Ran is true once at least one test case was handed to the runner;
	// callers use it to decide whether time_ms/memory_kb are meaningful
	// or should be omitted entirely (unsupported language, no test
	// cases, and a missing file on case 1 all leave this false).
	Ran bool
}

// Runner is the subset of the sandbox engine the driver depends on.
type Runner interface {
	Run(ctx context.Context, in runner.Input) runner.ExecutionResult
}

// Driver judges submissions against a language registry and a runner,
// using WorkDir for per-job scratch files and DataDir as the read-only
// root of per-problem test cases.
type Driver struct {
	Profiles *profile.Registry
	Runner   Runner
	DataDir  string
	WorkDir  string
}

// Judge runs one submission through compile (if needed) and every test
// case in order, stopping at the first non-Accepted verdict. Every exit
// path removes the source file and invokes the profile's own cleanup.
func (d *Driver) Judge(ctx context.Context, sub Submission) Outcome {
	ctx = logging.WithSubmissionID(ctx, sub.ID)

	prof, err := d.Profiles.Resolve(sub.Language)
	if err != nil {
		logging.Warn(ctx, "unsupported language", zap.String("language", sub.Language))
		return Outcome{ID: sub.ID, Verdict: runner.InternalError, ErrorExcerpt: errs.LanguageNotSupported.Message()}
	}

	sourcePath := filepath.Join(d.WorkDir, prof.SourceFilename(sub.ID))
	if err := os.WriteFile(sourcePath, sub.Source, 0o644); err != nil {
		wrapped := errs.Wrapf(err, errs.FilesystemError, "write source file")
		logging.Error(ctx, "write source file failed", zap.Error(wrapped))
		return Outcome{ID: sub.ID, Verdict: runner.InternalError, ErrorExcerpt: wrapped.Error()}
	}
	defer func() {
		if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
			logging.Warn(ctx, "remove source file failed", zap.Error(err))
		}
		if err := prof.Cleanup(sub.ID, d.WorkDir); err != nil {
			logging.Warn(ctx, "profile cleanup failed", zap.Error(err))
		}
	}()

	if prof.NeedsCompilation() {
		if outcome, ok := d.compile(ctx, prof, sub); !ok {
			return outcome
		}
	}

	if sub.TestCaseCount <= 0 {
		logging.Warn(ctx, "submission has no test cases", zap.Int("code", int(errs.JudgeSystemError)))
		return Outcome{ID: sub.ID, Verdict: runner.InternalError, ErrorExcerpt: "no test cases"}
	}

	return d.runCases(ctx, prof, sub)
}

func (d *Driver) compile(ctx context.Context, prof profile.Profile, sub Submission) (Outcome, bool) {
	argv := prof.CompileArgv(sub.ID)
	if len(argv) == 0 {
		return Outcome{ID: sub.ID, Verdict: runner.InternalError, ErrorExcerpt: "empty compile argv"}, false
	}

	errPath := filepath.Join(d.WorkDir, fmt.Sprintf("compile_err_%s.txt", sub.ID))
	defer os.Remove(errPath)

	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Outcome{ID: sub.ID, Verdict: runner.InternalError, ErrorExcerpt: fmt.Sprintf("open compile err file: %v", err)}, false
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = d.WorkDir
	cmd.Stderr = errFile
	runErr := cmd.Run()
	errFile.Close()

	if runErr != nil {
		logging.Warn(ctx, "compilation failed", zap.Int("code", int(errs.CompilationError)))
		return Outcome{ID: sub.ID, Verdict: runner.CompilationError, ErrorExcerpt: excerpt(errPath, compileErrExcerptBytes)}, false
	}
	return Outcome{}, true
}

func (d *Driver) runCases(ctx context.Context, prof profile.Profile, sub Submission) Outcome {
	var maxTimeMs, maxMemoryKB int64
	var ran bool
	asLimit := prof.AddressSpaceLimit(sub.MemoryLimitMB)

	for i := 1; i <= sub.TestCaseCount; i++ {
		inPath := filepath.Join(d.DataDir, sub.ProblemID, fmt.Sprintf("%d_in.txt", i))
		expectedPath := filepath.Join(d.DataDir, sub.ProblemID, fmt.Sprintf("%d_out.txt", i))

		missing := firstMissing(inPath, expectedPath)
		if missing != "" {
			logging.Error(ctx, "test case file missing", zap.Int("case", i), zap.String("path", missing), zap.Int("code", int(errs.TestCaseMissing)))
			return Outcome{ID: sub.ID, Verdict: runner.InternalError, MaxTimeMs: maxTimeMs, MaxMemoryKB: maxMemoryKB, ErrorExcerpt: "missing test case file: " + missing, Ran: ran}
		}

		outPath := filepath.Join(d.WorkDir, fmt.Sprintf("out_%s_%d.txt", sub.ID, i))
		ran = true
		res := d.Runner.Run(ctx, runner.Input{
			SubmissionID:          sub.ID,
			TestID:                strconv.Itoa(i),
			Argv:                  prof.RunArgv(sub.ID, sub.MemoryLimitMB),
			WorkDir:               d.WorkDir,
			InputPath:             inPath,
			OutputPath:            outPath,
			ExpectedPath:          expectedPath,
			TimeLimitS:            sub.TimeLimitS,
			MemoryMB:              sub.MemoryLimitMB,
			AddressSpaceUnlimited: asLimit.Unlimited,
			AddressSpaceBytes:     asLimit.Bytes,
		})

		if res.TimeMs > maxTimeMs {
			maxTimeMs = res.TimeMs
		}
		if res.MemoryKB > maxMemoryKB {
			maxMemoryKB = res.MemoryKB
		}
		os.Remove(outPath)

		if res.Verdict != runner.Accepted {
			out := Outcome{ID: sub.ID, Verdict: res.Verdict, MaxTimeMs: maxTimeMs, MaxMemoryKB: maxMemoryKB, Ran: ran}
			if res.Verdict == runner.RuntimeError || res.Verdict == runner.InternalError {
				out.ErrorExcerpt = res.StderrExcerpt
			}
			return out
		}
	}

	return Outcome{ID: sub.ID, Verdict: runner.Accepted, MaxTimeMs: maxTimeMs, MaxMemoryKB: maxMemoryKB, Ran: ran}
}

func firstMissing(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return p
		}
	}
	return ""
}

func excerpt(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}
