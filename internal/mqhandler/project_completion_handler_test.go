package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"go.uber.org/zap"

	mqcontracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage"
	"freelancehub/internal/storage/memory"
)

type fakeDeduper struct {
	seen     map[string]bool
	released int
}

func (d *fakeDeduper) AcquireOnce(ctx context.Context, handler, eventID string) bool {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	key := handler + ":" + eventID
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func (d *fakeDeduper) Release(ctx context.Context, handler, eventID string) {
	delete(d.seen, handler+":"+eventID)
	d.released++
}

type fakeRetryCounter struct {
	counts map[string]int64
}

func (r *fakeRetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if r.counts == nil {
		r.counts = map[string]int64{}
	}
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeRetryCounter) Reset(ctx context.Context, key string) error {
	delete(r.counts, key)
	return nil
}

type fakeDLQ struct {
	messages []string
}

func (q *fakeDLQ) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, source string) error {
	q.messages = append(q.messages, originalError)
	return nil
}

type failingCompleter struct {
	err   error
	calls int
}

func (f *failingCompleter) CompleteProjectIfFinished(ctx context.Context, projectID string) (bool, error) {
	f.calls++
	return false, f.err
}

func payload(t *testing.T, eventID, projectID, to string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(mqcontracts.MilestoneStatusChangedPayload{
		EventID:   eventID,
		ProjectID: projectID,
		To:        to,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func seedActiveProject(t *testing.T, statuses ...model.MilestoneStatus) (*memory.Store, *roadmap.Engine) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	err := store.RunInTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProject(ctx, &model.Project{ID: "p-1", FreelancerID: "f-1", Status: model.ProjectActive}); err != nil {
			return err
		}
		ms := make([]model.Milestone, len(statuses))
		for i, s := range statuses {
			ms[i] = model.Milestone{ID: string(rune('a' + i)), ProjectID: "p-1", Title: "m", Order: i, Status: s}
		}
		return tx.InsertMilestones(ctx, ms)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store, roadmap.NewEngine(store, zap.NewNop())
}

func TestCompletesProjectWhenAllMilestonesDone(t *testing.T) {
	store, engine := seedActiveProject(t, model.MilestoneCompleted, model.MilestoneCompleted)
	dedup, dlq := &fakeDeduper{}, &fakeDLQ{}
	h := NewProjectCompletionHandler(engine, dedup, &fakeRetryCounter{}, dlq, zap.NewNop())
	ctx := context.Background()

	if err := h.Handle(ctx, payload(t, "e-1", "p-1", "COMPLETED")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	p, _ := store.GetProject(ctx, "p-1")
	if p.Status != model.ProjectCompleted {
		t.Fatalf("status = %s", p.Status)
	}
	events := store.Events()
	if len(events) != 1 || events[0].RoutingKey != mqcontracts.RoutingProjectCompleted {
		t.Fatalf("events = %+v", events)
	}

	// redelivery is skipped
	if err := h.Handle(ctx, payload(t, "e-1", "p-1", "COMPLETED")); err != nil {
		t.Fatalf("Handle duplicate: %v", err)
	}
	if len(store.Events()) != 1 || len(dlq.messages) != 0 {
		t.Fatalf("duplicate produced side effects")
	}
}

func TestLeavesProjectOpenWithPendingMilestones(t *testing.T) {
	store, engine := seedActiveProject(t, model.MilestoneCompleted, model.MilestoneInProgress)
	h := NewProjectCompletionHandler(engine, &fakeDeduper{}, &fakeRetryCounter{}, &fakeDLQ{}, zap.NewNop())
	ctx := context.Background()

	if err := h.Handle(ctx, payload(t, "e-1", "p-1", "COMPLETED")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if p, _ := store.GetProject(ctx, "p-1"); p.Status != model.ProjectActive {
		t.Fatalf("status = %s", p.Status)
	}
}

func TestIgnoresNonCompletionTransitions(t *testing.T) {
	fc := &failingCompleter{}
	h := NewProjectCompletionHandler(fc, &fakeDeduper{}, &fakeRetryCounter{}, &fakeDLQ{}, zap.NewNop())
	if err := h.Handle(context.Background(), payload(t, "e-1", "p-1", "IN_PROGRESS")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if fc.calls != 0 {
		t.Fatalf("completer called %d times", fc.calls)
	}
}

func TestBadPayloadGoesToDLQ(t *testing.T) {
	dlq := &fakeDLQ{}
	h := NewProjectCompletionHandler(&failingCompleter{}, &fakeDeduper{}, &fakeRetryCounter{}, dlq, zap.NewNop())

	for _, raw := range []string{`{not json`, `{"to":"COMPLETED"}`} {
		if err := h.Handle(context.Background(), json.RawMessage(raw)); err != nil {
			t.Fatalf("Handle(%s): %v", raw, err)
		}
	}
	if len(dlq.messages) != 2 {
		t.Fatalf("dlq = %v", dlq.messages)
	}
}

func TestRetryableErrorRequeuesThenDeadLetters(t *testing.T) {
	fc := &failingCompleter{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	dedup, dlq := &fakeDeduper{}, &fakeDLQ{}
	h := NewProjectCompletionHandler(fc, dedup, &fakeRetryCounter{}, dlq, zap.NewNop())
	ctx := context.Background()
	msg := payload(t, "e-1", "p-1", "COMPLETED")

	for i := 1; i <= maxRetries; i++ {
		if err := h.Handle(ctx, msg); err == nil {
			t.Fatalf("attempt %d: expected requeue", i)
		}
	}
	if dedup.released != maxRetries {
		t.Fatalf("released = %d, want %d", dedup.released, maxRetries)
	}

	if err := h.Handle(ctx, msg); err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	if len(dlq.messages) != 1 || fc.calls != maxRetries+1 {
		t.Fatalf("dlq = %v, calls = %d", dlq.messages, fc.calls)
	}
}

func TestNonRetryableErrorDeadLettersImmediately(t *testing.T) {
	fc := &failingCompleter{err: errors.New("permission denied for table projects")}
	dlq := &fakeDLQ{}
	h := NewProjectCompletionHandler(fc, &fakeDeduper{}, &fakeRetryCounter{}, dlq, zap.NewNop())

	if err := h.Handle(context.Background(), payload(t, "e-1", "p-1", "COMPLETED")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("dlq = %v", dlq.messages)
	}
}
