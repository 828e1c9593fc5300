package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
	"github.com/ghalamif/PulseFlow/internal/testutil"
)

type fakeLink struct {
	mu          sync.Mutex
	connected   bool
	errs        []error
	calls       int
	block       bool
	panicMsg    string
	statusHang  bool
	statusPanic string
}

func (l *fakeLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	l.calls++
	if l.panicMsg != "" {
		msg := l.panicMsg
		l.mu.Unlock()
		panic(msg)
	}
	if l.block {
		l.mu.Unlock()
		select {} // ignores ctx on purpose
	}
	var err error
	if len(l.errs) > 0 {
		err = l.errs[0]
		l.errs = l.errs[1:]
	}
	l.connected = err == nil
	l.mu.Unlock()
	return err
}

func (l *fakeLink) Disconnect(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

func (l *fakeLink) IsConnected(ctx context.Context) bool {
	l.mu.Lock()
	hang, msg, up := l.statusHang, l.statusPanic, l.connected
	l.mu.Unlock()
	if msg != "" {
		panic(msg)
	}
	if hang {
		<-ctx.Done()
		return false
	}
	return up
}

func (l *fakeLink) set(fn func(l *fakeLink)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l)
}

func (l *fakeLink) Name() string { return "fake" }

func (l *fakeLink) drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, link ports.Link, clock *manualClock) (*Manager, *testutil.Obs) {
	t.Helper()
	obs := testutil.NewObs()
	m, err := NewManager(link, obs,
		WithClock(clock.Now),
		WithBackoff(NewBackoff(BackoffConfig{Min: time.Second, Max: 8 * time.Second, Multiplier: 2})),
	)
	require.NoError(t, err)
	return m, obs
}

func TestEnsureConnectedSuccess(t *testing.T) {
	link := &fakeLink{}
	m, obs := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

	require.NoError(t, m.EnsureConnected(context.Background(), time.Second))
	assert.Equal(t, domain.Connected, m.State())
	assert.Equal(t, 1, obs.Count("link_connected"))

	// Already connected: no second association.
	require.NoError(t, m.EnsureConnected(context.Background(), time.Second))
	assert.Equal(t, 1, link.calls)
}

func TestEnsureConnectedClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"auth", fmt.Errorf("nmcli: %w", ports.ErrLinkAuth), ErrAuthFailure},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"radio", errors.New("no such device"), ErrRadioFault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			link := &fakeLink{errs: []error{tc.err}}
			m, _ := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

			err := m.EnsureConnected(context.Background(), time.Second)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, domain.Disconnected, m.State())

			var cerr *ConnectError
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestEnsureConnectedTimesOutOnStuckAdapter(t *testing.T) {
	link := &fakeLink{block: true}
	m, _ := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

	start := time.Now()
	err := m.EnsureConnected(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.Disconnected, m.State())
}

func TestEnsureConnectedRecoversAdapterPanic(t *testing.T) {
	link := &fakeLink{panicMsg: "driver bug"}
	m, _ := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

	err := m.EnsureConnected(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrRadioFault)
	assert.Equal(t, domain.Disconnected, m.State())
}

func TestEnsureConnectedBoundsHungStatusCheck(t *testing.T) {
	link := &fakeLink{statusHang: true}
	m, _ := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := m.EnsureConnected(ctx, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.Disconnected, m.State())
	assert.Zero(t, link.calls, "no association attempt once the budget is spent")
}

func TestEnsureConnectedBoundsHungStatusWhileConnected(t *testing.T) {
	link := &fakeLink{}
	m, obs := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})
	require.NoError(t, m.EnsureConnected(context.Background(), time.Second))

	link.set(func(l *fakeLink) { l.statusHang = true })

	start := time.Now()
	err := m.EnsureConnected(context.Background(), 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.Disconnected, m.State())
	assert.Equal(t, 1, obs.Count("link_lost"))
}

func TestEnsureConnectedRecoversStatusPanic(t *testing.T) {
	link := &fakeLink{statusPanic: "status check blew up"}
	m, _ := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

	var err error
	require.NotPanics(t, func() { err = m.EnsureConnected(context.Background(), time.Second) })
	require.ErrorIs(t, err, ErrRadioFault)
	assert.Contains(t, err.Error(), "status check blew up")
	assert.Equal(t, domain.Disconnected, m.State())
}

func TestEnsureConnectedRecoversStatusPanicWhileConnected(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	link := &fakeLink{}
	m, obs := newTestManager(t, link, clock)
	require.NoError(t, m.EnsureConnected(context.Background(), time.Second))

	link.set(func(l *fakeLink) { l.statusPanic = "driver bug" })

	var err error
	require.NotPanics(t, func() { err = m.EnsureConnected(context.Background(), time.Second) })
	require.ErrorIs(t, err, ErrRadioFault)
	assert.Equal(t, domain.Disconnected, m.State())
	assert.Equal(t, 1, obs.Count("link_lost"))
}

func TestStateIsReadableDuringAttempt(t *testing.T) {
	link := &fakeLink{block: true}
	m, _ := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.EnsureConnected(context.Background(), 500*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		start := time.Now()
		state := m.State()
		return state == domain.Connecting && time.Since(start) < 50*time.Millisecond
	}, 400*time.Millisecond, 5*time.Millisecond)

	<-done
	assert.Equal(t, domain.Disconnected, m.State())
}

func TestEnsureConnectedFailsFastDuringBackoff(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	link := &fakeLink{errs: []error{errors.New("down"), errors.New("down")}}
	m, _ := newTestManager(t, link, clock)

	require.ErrorIs(t, m.EnsureConnected(context.Background(), time.Second), ErrRadioFault)
	require.Equal(t, 1, link.calls)

	err := m.EnsureConnected(context.Background(), time.Second)
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, RadioFault, cerr.Kind)
	assert.Equal(t, time.Second, cerr.RetryIn)
	assert.Equal(t, 1, link.calls, "must not touch the radio inside the backoff window")

	clock.Advance(time.Second)
	require.Error(t, m.EnsureConnected(context.Background(), time.Second))
	assert.Equal(t, 2, link.calls)

	// Second failure doubled the window.
	clock.Advance(time.Second)
	require.Error(t, m.EnsureConnected(context.Background(), time.Second))
	assert.Equal(t, 2, link.calls)
}

func TestSuccessResetsBackoff(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	link := &fakeLink{errs: []error{errors.New("a"), errors.New("b"), nil, errors.New("c")}}
	m, obs := newTestManager(t, link, clock)

	require.Error(t, m.EnsureConnected(context.Background(), time.Second))
	clock.Advance(time.Second)
	require.Error(t, m.EnsureConnected(context.Background(), time.Second))
	assert.Equal(t, 4.0, m.backoff.Base().Seconds())

	clock.Advance(2 * time.Second)
	require.NoError(t, m.EnsureConnected(context.Background(), time.Second))
	assert.Equal(t, time.Second, m.backoff.Base())

	link.drop()
	err := m.EnsureConnected(context.Background(), time.Second)
	require.Error(t, err)
	assert.Equal(t, 1.0, obs.Gauge("pulseflow_backoff_seconds"))
	assert.Equal(t, 1, obs.Count("link_lost"))
}

func TestMarkDown(t *testing.T) {
	link := &fakeLink{}
	m, obs := newTestManager(t, link, &manualClock{now: time.Unix(0, 0)})
	require.NoError(t, m.EnsureConnected(context.Background(), time.Second))

	m.MarkDown(errors.New("beacon loss"))
	assert.Equal(t, domain.Disconnected, m.State())
	assert.Equal(t, 1, obs.Count("link_marked_down"))

	m.MarkDown(errors.New("again"))
	assert.Equal(t, 1, obs.Count("link_marked_down"))
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	_, err := NewManager(nil, testutil.NewObs())
	assert.Error(t, err)
	_, err = NewManager(&fakeLink{}, nil)
	assert.Error(t, err)
}
