package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
)

type okMessage struct{}

func (okMessage) Type() string { return "crm.command.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "crm.command.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "crm.command.test.dispatch" }

type queueMessage struct{}

func (queueMessage) Type() string { return "crm.command.test.queue" }

type resultMessage struct {
	Value int
}

func (resultMessage) Type() string { return "crm.command.test.result" }

type lookupMessage struct {
	Key string
}

func (lookupMessage) Type() string { return "crm.query.test.lookup" }

type mixedCommandMessage struct{}

func (mixedCommandMessage) Type() string { return "crm.command.test.mixed" }

type mixedQueryMessage struct{}

func (mixedQueryMessage) Type() string { return "crm.query.test.mixed" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestBus_HandleAndDispatch(t *testing.T) {
	bus := newBus(t)
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})
	if err := Handle(bus, cmd); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := bus.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
	if err := Dispatch(context.Background(), failingMessage{}); err == nil {
		t.Fatalf("expected invalid message to be rejected before dispatch")
	}
}

func TestBus_MirrorsCommandsIntoQueueRegistry(t *testing.T) {
	bus := newBus(t)
	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })
	if err := Handle(bus, cmd); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !bus.Queued("crm.command.test.queue") {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestDispatchResult_ReturnsStoredValue(t *testing.T) {
	bus := newBus(t)
	cmd := command.CommandFunc[resultMessage](func(ctx context.Context, msg resultMessage) error {
		if collector := command.ResultFromContext[int](ctx); collector != nil {
			collector.Store(msg.Value * 2)
		}
		return nil
	})
	if err := Handle(bus, cmd); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, err := DispatchResult[resultMessage, int](context.Background(), resultMessage{Value: 21})
	if err != nil {
		t.Fatalf("dispatch result: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if _, err := DispatchResult[resultMessage, string](context.Background(), resultMessage{Value: 1}); err == nil {
		t.Fatalf("expected error when no result of the requested type is stored")
	}
}

func TestBus_ServeQueryAndClose(t *testing.T) {
	bus, err := NewBus(nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	qry := command.QueryFunc[lookupMessage, string](func(_ context.Context, msg lookupMessage) (string, error) {
		return "job:" + msg.Key, nil
	})
	if err := Serve(bus, qry); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected one tracked subscription, got %d", bus.Len())
	}

	out, err := Query[lookupMessage, string](context.Background(), lookupMessage{Key: "k1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "job:k1" {
		t.Fatalf("unexpected query result %q", out)
	}

	bus.Close()
	if bus.Len() != 0 {
		t.Fatalf("expected subscriptions released")
	}
	bus.Close()
}

func TestBus_InitializeWithCommandsAndQueries(t *testing.T) {
	bus := newBus(t)
	cmd := command.CommandFunc[mixedCommandMessage](func(context.Context, mixedCommandMessage) error { return nil })
	qry := command.QueryFunc[mixedQueryMessage, int](func(context.Context, mixedQueryMessage) (int, error) {
		return 7, nil
	})
	if err := Handle(bus, cmd); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := Serve(bus, qry); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !bus.Queued("crm.command.test.mixed") {
		t.Fatalf("expected command mirrored into queue registry")
	}
	if bus.Queued("crm.query.test.mixed") {
		t.Fatalf("expected query kept out of queue registry")
	}

	out, err := Query[mixedQueryMessage, int](context.Background(), mixedQueryMessage{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != 7 {
		t.Fatalf("expected 7, got %d", out)
	}
}

func TestBus_NilSafety(t *testing.T) {
	var bus *Bus
	if err := Handle[dispatchMessage](bus, nil); err == nil {
		t.Fatalf("expected error for nil bus")
	}
	if bus.Queued("anything") || bus.Len() != 0 {
		t.Fatalf("expected zero values from nil bus")
	}
	bus.Close()
}

func newBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := NewBus(command.NewRegistry())
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}
