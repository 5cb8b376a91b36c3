package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	readings map[string][]any
	reads    []string
	writes   []writeCall
}

type writeCall struct {
	address string
	value   any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{readings: make(map[string][]any)}
}

func (f *fakeTransport) enqueue(address string, values ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[address] = append(f.readings[address], values...)
}

func (f *fakeTransport) Read(ctx context.Context, address string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, address)
	vals := f.readings[address]
	if len(vals) == 0 {
		return nil, nil
	}
	next := vals[0]
	if len(vals) > 1 {
		f.readings[address] = vals[1:]
	}
	return next, nil
}

func (f *fakeTransport) Write(ctx context.Context, address string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{address: address, value: value})
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	commits []commitCall
}

type commitCall struct {
	submodelID, idShortPath string
	value                   any
}

func (s *fakeSink) CommitValue(ctx context.Context, submodelID, idShortPath string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, commitCall{submodelID, idShortPath, value})
	return nil
}

func (s *fakeSink) snapshot() []commitCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]commitCall, len(s.commits))
	copy(out, s.commits)
	return out
}

type fakeSource struct {
	mu       sync.Mutex
	handlers map[string]func(ctx context.Context, value any)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]func(ctx context.Context, value any))}
}

func (s *fakeSource) Subscribe(submodelID, idShortPath string, handler func(ctx context.Context, value any)) func() {
	key := MappingKey(submodelID, idShortPath)
	s.mu.Lock()
	s.handlers[key] = handler
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.handlers, key)
		s.mu.Unlock()
	}
}

func (s *fakeSource) fire(submodelID, idShortPath string, value any) {
	s.mu.Lock()
	h := s.handlers[MappingKey(submodelID, idShortPath)]
	s.mu.Unlock()
	if h != nil {
		h(context.Background(), value)
	}
}

func TestManager_CommitsOnlyAfterDebounceConfirms(t *testing.T) {
	mapping := Mapping{
		SubmodelID: "sm-1", IDShortPath: "Temperature", NodeOrAddress: "hr:100",
		DataType: DataTypeFloat, Direction: DirectionRead, IntervalMS: 5, DebounceCount: 3,
	}
	registry, err := NewRegistry([]Mapping{mapping})
	require.NoError(t, err)

	transport := newFakeTransport()
	transport.enqueue("hr:100", 10.0, 10.0, 10.0, 20.0, 20.0)

	debounce, err := NewDebounceTracker(nil)
	require.NoError(t, err)
	sink := &fakeSink{}

	mgr := NewManager(registry, map[string]Transport{"modbus": transport}, debounce, sink, nil,
		func(Mapping) string { return "modbus" }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	time.Sleep(80 * time.Millisecond)
	cancel()
	mgr.Stop()

	commits := sink.snapshot()
	require.NotEmpty(t, commits)
	assert.Equal(t, "sm-1", commits[0].submodelID)
	assert.Equal(t, "Temperature", commits[0].idShortPath)
	assert.Equal(t, 10.0, commits[0].value)
}

func TestManager_ReadErrorDoesNotStopTask(t *testing.T) {
	mapping := Mapping{
		SubmodelID: "sm-1", IDShortPath: "Pressure", NodeOrAddress: "hr:200",
		DataType: DataTypeFloat, Direction: DirectionRead, IntervalMS: 5, DebounceCount: 1,
	}
	registry, err := NewRegistry([]Mapping{mapping})
	require.NoError(t, err)

	transport := newFakeTransport()
	// toFloat64 rejects non-numeric readings; use a bad initial reading type
	// to force a conversion error, then a good one.
	transport.enqueue("hr:200", "not-a-number", 5.0)

	debounce, err := NewDebounceTracker(nil)
	require.NoError(t, err)
	sink := &fakeSink{}

	mgr := NewManager(registry, map[string]Transport{"modbus": transport}, debounce, sink, nil,
		func(Mapping) string { return "modbus" }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	time.Sleep(40 * time.Millisecond)
	cancel()
	mgr.Stop()

	commits := sink.snapshot()
	require.NotEmpty(t, commits)
	assert.Equal(t, 5.0, commits[0].value)
}

func TestManager_WritableMappingWritesThroughOnEvent(t *testing.T) {
	mapping := Mapping{
		SubmodelID: "sm-1", IDShortPath: "Setpoint", NodeOrAddress: "hr:300",
		DataType: DataTypeFloat, Direction: DirectionWrite, IntervalMS: 1000, DebounceCount: 1,
		ScaleFactor: 2, Offset: 1,
	}
	registry, err := NewRegistry([]Mapping{mapping})
	require.NoError(t, err)

	transport := newFakeTransport()
	debounce, err := NewDebounceTracker(nil)
	require.NoError(t, err)
	source := newFakeSource()

	mgr := NewManager(registry, map[string]Transport{"modbus": transport}, debounce, nil, source,
		func(Mapping) string { return "modbus" }, nil)

	ctx := context.Background()
	mgr.Start(ctx)
	defer mgr.Stop()

	source.fire("sm-1", "Setpoint", 21.0)
	time.Sleep(10 * time.Millisecond)

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.writes, 1)
	assert.Equal(t, "hr:300", transport.writes[0].address)
	assert.Equal(t, 10.0, transport.writes[0].value) // (21-1)/2
}

func TestManager_StopUnsubscribesWritableMappings(t *testing.T) {
	mapping := Mapping{
		SubmodelID: "sm-1", IDShortPath: "Setpoint", NodeOrAddress: "hr:300",
		DataType: DataTypeFloat, Direction: DirectionWrite, IntervalMS: 1000, DebounceCount: 1,
	}
	registry, err := NewRegistry([]Mapping{mapping})
	require.NoError(t, err)

	transport := newFakeTransport()
	debounce, err := NewDebounceTracker(nil)
	require.NoError(t, err)
	source := newFakeSource()

	mgr := NewManager(registry, map[string]Transport{"modbus": transport}, debounce, nil, source,
		func(Mapping) string { return "modbus" }, nil)

	mgr.Start(context.Background())
	mgr.Stop()

	source.fire("sm-1", "Setpoint", 5.0)
	time.Sleep(10 * time.Millisecond)

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Empty(t, transport.writes)
}
