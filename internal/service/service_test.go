package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/notify"
	"github.com/alanyoungcy/arbengine/internal/service"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu        sync.Mutex
	published []published
	streamed  [][]byte
	err       error
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{channel, payload})
	return b.err
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, payload)
	return b.err
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.published))
	for i, p := range b.published {
		out[i] = p.channel
	}
	return out
}

func sampleRecord(status domain.ExecStatus) domain.ExecutionRecord {
	rec := domain.ExecutionRecord{
		ID:           "exec-1",
		Symbol:       "BTC/USDT",
		Type:         domain.OpportunityCrossExchange,
		Status:       status,
		Profit:       decimal.NewFromInt(8),
		Size:         decimal.NewFromInt(100),
		BuyExchange:  "binance",
		SellExchange: "okx",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if status == domain.ExecFailed {
		rec.Profit = decimal.Zero
		rec.Error = "order rejected: insufficient balance"
	}
	return rec
}

func TestBroadcaster_Execution(t *testing.T) {
	bus := &fakeBus{}
	b := service.NewBroadcaster(bus, discard())

	stats := domain.Stats{TotalExecutions: 1, SuccessfulExecutions: 1, TotalProfit: decimal.NewFromInt(8)}
	b.OnExecution(context.Background(), sampleRecord(domain.ExecSuccess), stats)

	assert.Equal(t, []string{domain.ChannelExecution, domain.ChannelStats}, bus.channels())
	require.Len(t, bus.streamed, 1)

	var env struct {
		Type string                 `json:"type"`
		Data service.ExecutionEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(bus.published[0].payload, &env))
	assert.Equal(t, domain.EventExecution, env.Type)
	assert.Equal(t, "exec-1", env.Data.Record.ID)
	assert.Equal(t, int64(1), env.Data.Stats.TotalExecutions)

	var rec domain.ExecutionRecord
	require.NoError(t, json.Unmarshal(bus.streamed[0], &rec))
	assert.Equal(t, domain.ExecSuccess, rec.Status)
}

func TestBroadcaster_ChannelsPerEvent(t *testing.T) {
	bus := &fakeBus{}
	b := service.NewBroadcaster(bus, discard())
	ctx := context.Background()

	b.OnHedge(ctx, domain.HedgeOutcome{ExecutionID: "exec-1", Success: true}, domain.Stats{})
	b.OnConfig(ctx, domain.DefaultAutomationConfig())
	b.OnStatus(ctx, domain.Stats{IsRunning: true})
	b.OnScan(ctx, domain.ScanReport{Discovered: 2})

	assert.Equal(t, []string{
		domain.ChannelHedge, domain.ChannelStats,
		domain.ChannelConfig, domain.ChannelStatus, domain.ChannelScan,
	}, bus.channels())
}

func TestBroadcaster_BusErrorsAreSwallowed(t *testing.T) {
	bus := &fakeBus{err: errors.New("redis down")}
	b := service.NewBroadcaster(bus, discard())
	assert.NotPanics(t, func() {
		b.OnExecution(context.Background(), sampleRecord(domain.ExecFailed), domain.Stats{})
	})
	assert.Len(t, bus.published, 2)
}

type fakeExecStore struct {
	domain.ExecutionStore
	created []domain.ExecutionRecord
	err     error
}

func (s *fakeExecStore) Create(_ context.Context, rec domain.ExecutionRecord) error {
	s.created = append(s.created, rec)
	return s.err
}

type fakeHedgeStore struct {
	domain.HedgeStore
	created []domain.HedgeOutcome
}

func (s *fakeHedgeStore) Create(_ context.Context, o domain.HedgeOutcome) error {
	s.created = append(s.created, o)
	return nil
}

type fakeConfigStore struct {
	saved []domain.AutomationConfig
}

func (s *fakeConfigStore) Load(context.Context) (domain.AutomationConfig, error) {
	return domain.AutomationConfig{}, domain.ErrNotFound
}

func (s *fakeConfigStore) Save(_ context.Context, cfg domain.AutomationConfig) error {
	s.saved = append(s.saved, cfg)
	return nil
}

type auditEvent struct {
	event  string
	detail map[string]any
}

type fakeAudit struct {
	events []auditEvent
}

func (a *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, auditEvent{event, detail})
	return nil
}

func (a *fakeAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *fakeAudit) names() []string {
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.event
	}
	return out
}

func TestRecorder_PersistsEvents(t *testing.T) {
	execs := &fakeExecStore{}
	hedges := &fakeHedgeStore{}
	configs := &fakeConfigStore{}
	audit := &fakeAudit{}
	r := service.NewRecorder(execs, hedges, configs, audit, discard())
	ctx := context.Background()

	r.OnExecution(ctx, sampleRecord(domain.ExecSuccess), domain.Stats{})
	r.OnHedge(ctx, domain.HedgeOutcome{ExecutionID: "exec-1", Success: true}, domain.Stats{})
	r.OnHedge(ctx, domain.HedgeOutcome{ExecutionID: "exec-1", Error: "hedge rejected"}, domain.Stats{})

	cfg := domain.DefaultAutomationConfig()
	cfg.Version = 3
	r.OnConfig(ctx, cfg)

	require.Len(t, execs.created, 1)
	assert.Len(t, hedges.created, 2)
	require.Len(t, configs.saved, 1)
	assert.Equal(t, uint64(3), configs.saved[0].Version)
	assert.Equal(t, []string{domain.AuditHedgeFailed, domain.AuditConfigUpdated}, audit.names())
	assert.Equal(t, "hedge rejected", audit.events[0].detail["error"])
	assert.Equal(t, uint64(3), audit.events[1].detail["version"])
}

func TestRecorder_StatusAuditedOnTransitionsOnly(t *testing.T) {
	audit := &fakeAudit{}
	r := service.NewRecorder(nil, nil, nil, audit, discard())
	ctx := context.Background()

	r.OnStatus(ctx, domain.Stats{IsRunning: true})
	r.OnStatus(ctx, domain.Stats{IsRunning: true})
	r.OnStatus(ctx, domain.Stats{IsRunning: false})

	require.Len(t, audit.events, 2)
	assert.Equal(t, true, audit.events[0].detail["is_running"])
	assert.Equal(t, false, audit.events[1].detail["is_running"])
}

func TestRecorder_NilStoresAndFailures(t *testing.T) {
	r := service.NewRecorder(nil, nil, nil, nil, discard())
	ctx := context.Background()
	assert.NotPanics(t, func() {
		r.OnExecution(ctx, sampleRecord(domain.ExecSuccess), domain.Stats{})
		r.OnHedge(ctx, domain.HedgeOutcome{}, domain.Stats{})
		r.OnConfig(ctx, domain.DefaultAutomationConfig())
	})

	execs := &fakeExecStore{err: errors.New("db down")}
	r = service.NewRecorder(execs, nil, nil, nil, discard())
	assert.NotPanics(t, func() {
		r.OnExecution(ctx, sampleRecord(domain.ExecSuccess), domain.Stats{})
	})
}

type sentAlert struct {
	event, title, message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
}

func (n *fakeNotifier) Notify(_ context.Context, event, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentAlert{event, title, message})
	return nil
}

func (n *fakeNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.event
	}
	return out
}

func TestAlerter_QueuesAndDelivers(t *testing.T) {
	n := &fakeNotifier{}
	a := service.NewAlerter(n, discard())
	ctx := context.Background()

	a.OnExecution(ctx, sampleRecord(domain.ExecFailed), domain.Stats{})
	a.OnHedge(ctx, domain.HedgeOutcome{Success: true}, domain.Stats{})
	a.OnHedge(ctx, domain.HedgeOutcome{ExecutionID: "exec-1", Error: "venue down"}, domain.Stats{})
	a.OnStatus(ctx, domain.Stats{IsRunning: false})
	a.OnStatus(ctx, domain.Stats{IsRunning: true})
	a.OnScan(ctx, domain.ScanReport{})
	a.OnScan(ctx, domain.ScanReport{Error: "discovery timeout"})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = a.Run(runCtx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(n.events()) == 4 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{
		notify.EventExecutionFailed,
		notify.EventHedgeFailed,
		notify.EventAutomationStatus,
		notify.EventScanFailed,
	}, n.events())
	assert.Contains(t, n.sent[0].message, "insufficient balance")
	assert.Equal(t, "Automation started", n.sent[2].title)
}

func TestAlerter_FlushesOnShutdown(t *testing.T) {
	n := &fakeNotifier{}
	a := service.NewAlerter(n, discard())
	a.OnExecution(context.Background(), sampleRecord(domain.ExecSuccess), domain.Stats{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, []string{notify.EventExecutionSuccess}, n.events())
}

type fakeArchiver struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeArchiver) ArchiveExecutions(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return f.n, f.err
}

func TestNewArchiveJob_Validation(t *testing.T) {
	_, err := service.NewArchiveJob(&fakeArchiver{}, "not a cron", 30, discard())
	assert.Error(t, err)

	_, err = service.NewArchiveJob(&fakeArchiver{}, "0 0 3 * * *", 0, discard())
	assert.Error(t, err)

	_, err = service.NewArchiveJob(&fakeArchiver{}, "@daily", 30, discard())
	assert.NoError(t, err)
}

func TestArchiveJob_RunOnceUsesRetention(t *testing.T) {
	arch := &fakeArchiver{n: 4}
	job, err := service.NewArchiveJob(arch, "0 0 3 * * *", 7, discard())
	require.NoError(t, err)

	before := time.Now().UTC()
	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.Len(t, arch.cutoffs, 1)
	want := before.Add(-7 * 24 * time.Hour)
	assert.WithinDuration(t, want, arch.cutoffs[0], 5*time.Second)
}

func TestArchiveJob_RunOnceWrapsError(t *testing.T) {
	boom := errors.New("s3 down")
	job, err := service.NewArchiveJob(&fakeArchiver{err: boom}, "@daily", 30, discard())
	require.NoError(t, err)

	_, err = job.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestArchiveJob_ScheduledRuns(t *testing.T) {
	arch := &fakeArchiver{}
	job, err := service.NewArchiveJob(arch, "* * * * * *", 30, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	require.Eventually(t, func() bool {
		arch.mu.Lock()
		defer arch.mu.Unlock()
		return len(arch.cutoffs) > 0
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("archive job did not stop")
	}
}
