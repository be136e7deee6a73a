// Package worker adapts the Judge Driver to a broker: it decodes job
// payloads off submission_queue, judges them, and publishes results onto
// result_queue, translating the driver's outcome into the ack/reject
// vocabulary the spec's error-handling design requires.
package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fouguai/judgeworker/internal/errs"
	"github.com/fouguai/judgeworker/internal/judge/driver"
	"github.com/fouguai/judgeworker/internal/judge/runner"
	"github.com/fouguai/judgeworker/internal/logging"
	"github.com/fouguai/judgeworker/internal/mq"
)

// dataPackSyncer populates the data directory for a problem before it is
// judged for the first time on this worker. Optional: nil means the
// worker assumes DataDir is already fully populated (the baked-in-image
// deployment model).
type dataPackSyncer interface {
	Ensure(ctx context.Context, problemID string) (string, error)
}

const (
	defaultTimeLimitS    = 1.0
	defaultMemoryLimitMB = 256
)

// JobPayload is the external submission_queue message shape.
type JobPayload struct {
	ID            string   `json:"id"`
	Code          string   `json:"code"`
	Language      string   `json:"language"`
	ProblemID     json.Number `json:"problem_id"` // JSON number or numeric string
	TestCaseCount int      `json:"test_case_count"`
	TimeLimit     *float64 `json:"time_limit"`
	MemoryLimit   *int     `json:"memory_limit"`
}

// ResultPayload is the external result_queue message shape.
type ResultPayload struct {
	ID       string `json:"id"`
	Verdict  string `json:"verdict"`
	TimeMs   *int64 `json:"time_ms,omitempty"`
	MemoryKB *int64 `json:"memory_kb,omitempty"`
	Error    *string `json:"error"`
}

var verdictTags = map[runner.Verdict]string{
	runner.Accepted:            "ACCEPTED",
	runner.WrongAnswer:         "WRONG_ANSWER",
	runner.TimeLimitExceeded:   "TIME_LIMIT_EXCEEDED",
	runner.MemoryLimitExceeded: "MEMORY_LIMIT_EXCEEDED",
	runner.RuntimeError:        "RUNTIME_ERROR",
	runner.InternalError:       "INTERNAL_ERROR",
	runner.CompilationError:    "COMPILATION_ERROR",
}

// Worker wires one MessageQueue to one Driver under the single-threaded
// cooperative model: prefetch is forced to 1, and the next job is not
// fetched until this one has been acked or rejected.
type Worker struct {
	Driver          *driver.Driver
	Queue           mq.MessageQueue
	SubmissionQueue string
	ResultQueue     string
	ConsumerGroup   string

	// DataPackSync, if set, is consulted before judging to ensure the
	// problem's test-data directory is present.
	DataPackSync dataPackSyncer
}

// Run subscribes and starts consuming; it blocks until ctx is canceled,
// and returns early only if subscribing or starting the consumer fails.
func (w *Worker) Run(ctx context.Context) error {
	opts := &mq.SubscribeOptions{ConsumerGroup: w.ConsumerGroup}
	opts.PrefetchCount = 1
	if err := w.Queue.SubscribeWithOptions(ctx, w.SubmissionQueue, w.handle, opts); err != nil {
		return err
	}
	if err := w.Queue.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Stop releases the consumer loop.
func (w *Worker) Stop() error {
	return w.Queue.Stop()
}

func (w *Worker) handle(ctx context.Context, msg *mq.Message) (mq.HandlerResult, error) {
	var job JobPayload
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		logging.Warn(ctx, "poison job: malformed payload", zap.Error(errs.Wrap(err, errs.BrokerPoisonMessage)))
		return mq.RejectNoRequeue, nil
	}
	if job.ID == "" || job.Language == "" {
		logging.Warn(ctx, "poison job: missing required fields", zap.Error(errs.New(errs.BrokerPoisonMessage)), zap.String("raw_id", job.ID))
		return mq.RejectNoRequeue, nil
	}

	sub := driver.Submission{
		ID:            job.ID,
		Language:      job.Language,
		Source:        []byte(job.Code),
		ProblemID:     job.ProblemID.String(),
		TestCaseCount: job.TestCaseCount,
		TimeLimitS:    defaultTimeLimitS,
		MemoryLimitMB: defaultMemoryLimitMB,
	}
	if job.TimeLimit != nil {
		sub.TimeLimitS = *job.TimeLimit
	}
	if job.MemoryLimit != nil {
		sub.MemoryLimitMB = *job.MemoryLimit
	}

	if w.DataPackSync != nil {
		if _, err := w.DataPackSync.Ensure(ctx, sub.ProblemID); err != nil {
			logging.Error(ctx, "data pack sync failed", zap.Error(err), zap.String("problem_id", sub.ProblemID))
			body, encErr := json.Marshal(ResultPayload{ID: sub.ID, Verdict: verdictTags[runner.InternalError], Error: strPtr("data pack unavailable for problem " + sub.ProblemID + ": " + err.Error())})
			if encErr != nil {
				return mq.RejectRequeue, encErr
			}
			if pubErr := w.Queue.Publish(ctx, w.ResultQueue, mq.NewMessage(sub.ID, body)); pubErr != nil {
				return mq.RejectRequeue, pubErr
			}
			return mq.Ack, nil
		}
	}

	outcome := w.Driver.Judge(ctx, sub)

	body, err := json.Marshal(toResultPayload(outcome))
	if err != nil {
		logging.Error(ctx, "encode result payload failed", zap.Error(err))
		return mq.RejectRequeue, err
	}

	if err := w.Queue.Publish(ctx, w.ResultQueue, mq.NewMessage(outcome.ID, body)); err != nil {
		logging.Error(ctx, "publish result failed", zap.Error(errs.Wrap(err, errs.BrokerPublishFailed)))
		return mq.RejectRequeue, err
	}

	return mq.Ack, nil
}

func toResultPayload(o driver.Outcome) ResultPayload {
	tag, ok := verdictTags[o.Verdict]
	if !ok {
		tag = string(o.Verdict)
	}
	result := ResultPayload{ID: o.ID, Verdict: tag}

	if o.Ran {
		timeMs := o.MaxTimeMs
		memKB := o.MaxMemoryKB
		result.TimeMs = &timeMs
		result.MemoryKB = &memKB
	}

	switch o.Verdict {
	case runner.CompilationError, runner.RuntimeError, runner.InternalError:
		errMsg := o.ErrorExcerpt
		result.Error = &errMsg
	}

	return result
}

func strPtr(s string) *string { return &s }
