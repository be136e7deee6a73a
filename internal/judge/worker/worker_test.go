package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fouguai/judgeworker/internal/judge/driver"
	"github.com/fouguai/judgeworker/internal/judge/runner"
	"github.com/fouguai/judgeworker/internal/mq"
)

type fakeQueue struct {
	mq.MessageQueue
	published []*mq.Message
	topic     string
}

func (f *fakeQueue) Publish(ctx context.Context, topic string, message *mq.Message) error {
	f.topic = topic
	f.published = append(f.published, message)
	return nil
}

type fakeRunner struct {
	result runner.ExecutionResult
}

func (f *fakeRunner) Run(ctx context.Context, in runner.Input) runner.ExecutionResult {
	return f.result
}

func newTestWorker(q *fakeQueue, result runner.ExecutionResult) *Worker {
	d := &driver.Driver{Runner: &fakeRunner{result: result}}
	return &Worker{Driver: d, Queue: q, ResultQueue: "result_queue"}
}

func TestHandlePoisonMessageRejectsWithoutRequeue(t *testing.T) {
	q := &fakeQueue{}
	w := newTestWorker(q, runner.ExecutionResult{})

	res, err := w.handle(context.Background(), &mq.Message{Body: []byte("not json")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != mq.RejectNoRequeue {
		t.Fatalf("result = %v, want RejectNoRequeue", res)
	}
	if len(q.published) != 0 {
		t.Fatal("poison message must not publish a result")
	}
}

func TestHandleMissingFieldsRejectsWithoutRequeue(t *testing.T) {
	q := &fakeQueue{}
	w := newTestWorker(q, runner.ExecutionResult{})

	body, _ := json.Marshal(JobPayload{Code: "print(1)"})
	res, err := w.handle(context.Background(), &mq.Message{Body: body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != mq.RejectNoRequeue {
		t.Fatalf("result = %v, want RejectNoRequeue", res)
	}
}

func TestToResultPayloadOmitsTimingWhenNeverRan(t *testing.T) {
	out := driver.Outcome{ID: "s1", Verdict: runner.InternalError, ErrorExcerpt: "unsupported language", Ran: false}
	payload := toResultPayload(out)
	if payload.TimeMs != nil || payload.MemoryKB != nil {
		t.Fatal("expected time_ms/memory_kb to be omitted when the job never ran")
	}
	if payload.Error == nil || *payload.Error != "unsupported language" {
		t.Fatal("expected error to carry the excerpt")
	}
	if payload.Verdict != "INTERNAL_ERROR" {
		t.Fatalf("verdict = %q, want INTERNAL_ERROR", payload.Verdict)
	}
}

func TestToResultPayloadAcceptedHasNoError(t *testing.T) {
	out := driver.Outcome{ID: "s1", Verdict: runner.Accepted, MaxTimeMs: 12, MaxMemoryKB: 900, Ran: true}
	payload := toResultPayload(out)
	if payload.Error != nil {
		t.Fatal("accepted outcome must not carry an error")
	}
	if payload.TimeMs == nil || *payload.TimeMs != 12 {
		t.Fatal("expected time_ms to be populated")
	}
}
