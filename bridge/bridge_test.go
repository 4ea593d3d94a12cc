package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(name string, payload []byte) {
	if name != EventName {
		return
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) named(event string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

type callRecord struct {
	module, method, code string
}

type fakeRecorder struct {
	mu     sync.Mutex
	calls  []callRecord
	events []string
}

func (r *fakeRecorder) RecordBridgeCall(module, method, code string, _ time.Duration) {
	r.mu.Lock()
	r.calls = append(r.calls, callRecord{module, method, code})
	r.mu.Unlock()
}

func (r *fakeRecorder) RecordBridgeEvent(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type handlerFunc func(ctx context.Context, method string, raw []byte) (any, error)

func (f handlerFunc) Methods() []string { return []string{"call"} }

func (f handlerFunc) Call(ctx context.Context, method string, raw []byte) (any, error) {
	return f(ctx, method, raw)
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, code, be.Code, be.Message)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	b := New()
	h := handlerFunc(func(context.Context, string, []byte) (any, error) { return nil, nil })

	require.NoError(t, b.Register("a", h))
	require.Error(t, b.Register("a", h))
	require.Error(t, b.Register("", h))
	require.Error(t, b.Register("b", nil))
	assert.Equal(t, []string{"a"}, b.Modules())
	assert.Equal(t, []string{"call"}, b.Methods("a"))
	assert.Nil(t, b.Methods("missing"))
}

func TestInvokeUnknownModule(t *testing.T) {
	b := New()
	_, err := b.Invoke(context.Background(), "Nope", "call", nil)
	requireCode(t, err, CodeUnknownMethod)
}

func TestInvokeRecoversPanics(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("Boom", handlerFunc(func(context.Context, string, []byte) (any, error) {
		panic("kaboom")
	})))

	_, err := b.Invoke(context.Background(), "Boom", "call", nil)
	requireCode(t, err, CodeInternal)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestInvokeCanceledContext(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("M", handlerFunc(func(context.Context, string, []byte) (any, error) {
		return "ok", nil
	})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Invoke(ctx, "M", "call", nil)
	requireCode(t, err, CodeBusy)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvokeEncodesResult(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("M", handlerFunc(func(_ context.Context, method string, raw []byte) (any, error) {
		return map[string]any{"method": method, "raw": string(raw)}, nil
	})))

	out, err := b.Invoke(context.Background(), "M", "call", []byte(`[1]`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"call","raw":"[1]"}`, string(out))
}

func TestSubscribeAndEmit(t *testing.T) {
	rec := &fakeRecorder{}
	b := New(WithRecorder(rec))
	log := &eventLog{}
	unsubscribe := b.Subscribe(log.listen)

	require.NoError(t, b.Emit(Event{Module: "M", Event: "ping", Data: 1}))
	unsubscribe()
	unsubscribe()
	require.NoError(t, b.Emit(Event{Module: "M", Event: "ping"}))

	assert.Len(t, log.named("ping"), 1)
	assert.Equal(t, []string{"ping", "ping"}, rec.events)
}

func TestEmitUnencodable(t *testing.T) {
	b := New()
	require.Error(t, b.Emit(Event{Event: "bad", Data: make(chan int)}))
}

func TestRecorderSeesCodes(t *testing.T) {
	rec := &fakeRecorder{}
	b := New(WithRecorder(rec))
	require.NoError(t, b.Register("M", handlerFunc(func(_ context.Context, method string, _ []byte) (any, error) {
		if method == "fail" {
			return nil, Errorf(CodeInvalidArgument, "no")
		}
		return nil, nil
	})))

	_, _ = b.Invoke(context.Background(), "M", "ok", nil)
	_, _ = b.Invoke(context.Background(), "M", "fail", nil)

	assert.Equal(t, []callRecord{
		{"M", "ok", "OK"},
		{"M", "fail", "INVALID_ARGUMENT"},
	}, rec.calls)
}

func TestInvalidateRejectsCalls(t *testing.T) {
	b := New()
	log := &eventLog{}
	b.Subscribe(log.listen)
	require.NoError(t, b.Register("M", handlerFunc(func(context.Context, string, []byte) (any, error) {
		return nil, nil
	})))

	b.Invalidate()
	b.Invalidate()
	assert.False(t, b.Valid())

	_, err := b.Invoke(context.Background(), "M", "call", nil)
	requireCode(t, err, CodeNotInitialized)

	require.NoError(t, b.Emit(Event{Event: "late"}))
	assert.Empty(t, log.named("late"))
}
