package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

type stubTicketWriter struct {
	batches [][]UserTicket
	err     error
}

func (s *stubTicketWriter) CreateTickets(_ context.Context, tickets []UserTicket) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, tickets)
	return nil
}

type stubConsentWriter struct {
	updates map[int64]bool
}

func (s *stubConsentWriter) UpdateReceiveNews(_ context.Context, userID int64, value bool) error {
	if s.updates == nil {
		s.updates = map[int64]bool{}
	}
	s.updates[userID] = value
	return nil
}

type memoryDelivery struct {
	msg      *job.ExecutionMessage
	attempt  int
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (d *memoryDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *memoryDelivery) Attempt() int { return d.attempt }

func (d *memoryDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.nacked = true
	d.nackOpts = opts
	return nil
}

type memoryQueue struct {
	mu      sync.Mutex
	pending []*memoryDelivery
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, ErrNoJob
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	return next, nil
}

type capturingWorkerHook struct {
	starts    int
	successes int
	failures  int
	retries   int
	last      worker.Event
}

func (h *capturingWorkerHook) OnStart(context.Context, worker.Event) { h.starts++ }
func (h *capturingWorkerHook) OnSuccess(_ context.Context, event worker.Event) {
	h.successes++
	h.last = event
}
func (h *capturingWorkerHook) OnFailure(_ context.Context, event worker.Event) {
	h.failures++
	h.last = event
}
func (h *capturingWorkerHook) OnRetry(_ context.Context, event worker.Event) {
	h.retries++
	h.last = event
}

// jsonRoundTrip mimics parameters read back from the job table.
func jsonRoundTrip(t *testing.T, msg *job.ExecutionMessage) *job.ExecutionMessage {
	t.Helper()
	raw, err := json.Marshal(msg.Parameters)
	if err != nil {
		t.Fatalf("marshal parameters: %v", err)
	}
	params := map[string]any{}
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("unmarshal parameters: %v", err)
	}
	return &job.ExecutionMessage{JobID: msg.JobID, IdempotencyKey: msg.IdempotencyKey, Parameters: params}
}

func TestMassCreateTicketPayload_SurvivesJSON(t *testing.T) {
	msg := MassCreateTicketPayload{
		UserIDs:     []int64{1, 2, 3},
		TicketID:    77,
		AdminUserID: 9,
		Reason:      "promo",
	}.Message("key-1")
	decoded, err := DecodeMassCreateTicket(jsonRoundTrip(t, msg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.UserIDs) != 3 || decoded.UserIDs[2] != 3 || decoded.TicketID != 77 || decoded.AdminUserID != 9 {
		t.Fatalf("unexpected payload %#v", decoded)
	}
}

func TestDecodeUpdateUser_OptionalValue(t *testing.T) {
	value := true
	withValue := UpdateUserPayload{EventType: EventTypeReceiveNews, UserID: 5, EventValue: &value}.Message("")
	decoded, err := DecodeUpdateUser(jsonRoundTrip(t, withValue))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventValue == nil || !*decoded.EventValue {
		t.Fatalf("expected event value true, got %#v", decoded.EventValue)
	}

	withoutValue := UpdateUserPayload{EventType: EventTypeReceiveNews, UserID: 5}.Message("")
	decoded, err = DecodeUpdateUser(jsonRoundTrip(t, withoutValue))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventValue != nil {
		t.Fatalf("expected nil event value, got %v", *decoded.EventValue)
	}
}

func TestDecode_RejectsWrongJob(t *testing.T) {
	if _, err := DecodeMassCreateTicket(&job.ExecutionMessage{JobID: JobUpdateUserByWebhooks}); err == nil {
		t.Fatalf("expected job id mismatch error")
	}
}

func TestMassCreateTicketHandler(t *testing.T) {
	writer := &stubTicketWriter{}
	handler := NewMassCreateTicketHandler(writer)
	msg := MassCreateTicketPayload{UserIDs: []int64{10, 11}, TicketID: 3, AdminUserID: 1, Reason: " gift "}.Message("")
	if err := handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.batches) != 1 || len(writer.batches[0]) != 2 {
		t.Fatalf("expected one batch of two tickets, got %#v", writer.batches)
	}
	if got := writer.batches[0][1]; got.UserID != 11 || got.CouponID != 3 || got.Reason != "gift" {
		t.Fatalf("unexpected ticket %#v", got)
	}

	err := handler.Handle(context.Background(), &job.ExecutionMessage{JobID: JobMassCreateTicket})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error for empty payload, got %v", err)
	}
}

func TestUpdateUserByWebhooksHandler(t *testing.T) {
	writer := &stubConsentWriter{}
	handler := NewUpdateUserByWebhooksHandler(writer)
	value := false
	msg := UpdateUserPayload{EventType: EventTypeReceiveNews, UserID: 42, EventValue: &value}.Message("")
	if err := handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got, ok := writer.updates[42]; !ok || got {
		t.Fatalf("expected receive_news=false for user 42, got %#v", writer.updates)
	}

	unsupported := UpdateUserPayload{EventType: "unsubscribe_all", UserID: 42}.Message("")
	if err := handler.Handle(context.Background(), unsupported); !IsPermanent(err) {
		t.Fatalf("expected permanent error for unsupported event, got %v", err)
	}
}

func TestWorker_AcksSuccessAndRetriesFailure(t *testing.T) {
	writer := &stubTicketWriter{}
	registry, err := DefaultRegistry(writer, &stubConsentWriter{})
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	ok := &memoryDelivery{msg: MassCreateTicketPayload{UserIDs: []int64{1}, TicketID: 2, AdminUserID: 3}.Message("a"), attempt: 1}
	flaky := &memoryDelivery{msg: &job.ExecutionMessage{JobID: "crm.flaky"}, attempt: 2}
	orphan := &memoryDelivery{msg: &job.ExecutionMessage{JobID: "crm.unknown"}, attempt: 1}
	if err := registry.Register("crm.flaky", HandlerFunc(func(context.Context, *job.ExecutionMessage) error {
		return errors.New("temporarily down")
	})); err != nil {
		t.Fatalf("register flaky: %v", err)
	}

	hook := &capturingWorkerHook{}
	w, err := NewWorker(&memoryQueue{pending: []*memoryDelivery{ok, flaky, orphan}}, registry,
		WithHook(hook),
		WithRetryBackoff(time.Second),
		WithBatchSize(10),
	)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	processed, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if processed != 3 {
		t.Fatalf("expected 3 processed deliveries, got %d", processed)
	}
	if !ok.acked || len(writer.batches) != 1 {
		t.Fatalf("expected successful job to be acked")
	}
	if !flaky.nacked || flaky.nackOpts.Disposition != queue.NackDispositionRetry || flaky.nackOpts.Delay != 2*time.Second {
		t.Fatalf("expected retry with 2s backoff on attempt 2, got %#v", flaky.nackOpts)
	}
	if !orphan.nacked || orphan.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected unknown job to be dead-lettered, got %#v", orphan.nackOpts)
	}
	if hook.starts != 3 || hook.successes != 1 || hook.retries != 1 || hook.failures != 1 {
		t.Fatalf("unexpected hook counts %+v", hook)
	}
}

func TestWorker_MaxAttemptsDeadLetters(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register("crm.flaky", HandlerFunc(func(context.Context, *job.ExecutionMessage) error {
		return errors.New("still down")
	}))
	delivery := &memoryDelivery{msg: &job.ExecutionMessage{JobID: "crm.flaky"}, attempt: 3}
	w, _ := NewWorker(&memoryQueue{pending: []*memoryDelivery{delivery}}, registry, WithMaxAttempts(3))
	if _, err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if delivery.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %#v", delivery.nackOpts)
	}
}

func TestDefaultRegistry_RequiresWriters(t *testing.T) {
	if _, err := DefaultRegistry(nil, &stubConsentWriter{}); err == nil {
		t.Fatalf("expected error without ticket writer")
	}
	if _, err := DefaultRegistry(&stubTicketWriter{}, nil); err == nil {
		t.Fatalf("expected error without consent writer")
	}
	registry, err := DefaultRegistry(&stubTicketWriter{}, &stubConsentWriter{})
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	for _, id := range []string{JobMassCreateTicket, JobUpdateUserByWebhooks} {
		if _, ok := registry.Get(id); !ok {
			t.Fatalf("expected handler for %s", id)
		}
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	w, _ := NewWorker(&memoryQueue{}, NewRegistry(), WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}

type recordingMetrics struct {
	counters []string
	tags     []map[string]string
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	m.counters = append(m.counters, name)
	m.tags = append(m.tags, tags)
}

func (m *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func TestObserverHook_RecordsPhases(t *testing.T) {
	metrics := &recordingMetrics{}
	hook := NewObserverHook(nil, metrics)
	hook.OnSuccess(context.Background(), Event{JobID: JobMassCreateTicket, Attempt: 1, Duration: time.Millisecond})
	hook.OnRetry(context.Background(), Event{JobID: JobMassCreateTicket, Attempt: 2, Err: errors.New("down")})

	if len(metrics.counters) != 2 || metrics.counters[0] != "crm.jobs.mass_create_ticket.total" {
		t.Fatalf("unexpected counters %v", metrics.counters)
	}
	if metrics.tags[0]["phase"] != "success" || metrics.tags[1]["phase"] != "retry" {
		t.Fatalf("expected phase tags, got %#v", metrics.tags)
	}
	if metrics.tags[1]["status"] != "failure" {
		t.Fatalf("expected retry to record failure status, got %#v", metrics.tags[1])
	}
}
