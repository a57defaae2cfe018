package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scscodes/flsd/internal/infrastructure"
	"github.com/scscodes/flsd/internal/shared/testutil"
)

// startLog records the order in which tasks start
type startLog struct {
	mu    sync.Mutex
	names []string
	at    map[string]time.Time
}

func (l *startLog) task(name string, delay time.Duration) Task {
	return Task{
		Name:  name,
		Delay: delay,
		Run: func(ctx context.Context) error {
			l.mu.Lock()
			l.names = append(l.names, name)
			l.at[name] = time.Now()
			l.mu.Unlock()
			<-ctx.Done()
			return nil
		},
	}
}

func (l *startLog) started() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func TestSupervisor_StartOrderAndCleanShutdown(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	log := &startLog{at: map[string]time.Time{}}

	s := New(time.Second, logger)
	s.Add(log.task("api", 0))
	s.Add(log.task("dashboard", 50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	begin := time.Now()
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(log.started()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	assert.Equal(t, []string{"api", "dashboard"}, log.started())
	assert.GreaterOrEqual(t, log.at["dashboard"].Sub(begin), 50*time.Millisecond)
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "all tasks stopped")
}

func TestSupervisor_TaskFailureStopsOthers(t *testing.T) {
	boom := errors.New("address in use")
	var stopped bool
	var mu sync.Mutex

	s := New(time.Second, infrastructure.NewDiscardLogger())
	s.Add(Task{Name: "api", Run: func(ctx context.Context) error { return boom }})
	s.Add(Task{Name: "dashboard", Run: func(ctx context.Context) error {
		<-ctx.Done()
		mu.Lock()
		stopped = true
		mu.Unlock()
		return nil
	}})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "api")

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, stopped)
}

func TestSupervisor_DelayedTaskSkippedOnCancel(t *testing.T) {
	var ran bool
	s := New(time.Second, infrastructure.NewDiscardLogger())
	s.Add(Task{Name: "dashboard", Delay: time.Hour, Run: func(ctx context.Context) error {
		ran = true
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	assert.False(t, ran)
}

func TestSupervisor_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	s := New(10*time.Millisecond, infrastructure.NewDiscardLogger())
	s.Add(Task{Name: "stuck", Run: func(ctx context.Context) error {
		<-release
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
}

func TestSupervisor_CanceledErrorIsClean(t *testing.T) {
	s := New(time.Second, infrastructure.NewDiscardLogger())
	s.Add(Task{Name: "scheduler", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.NoError(t, s.Run(ctx))
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ServeListener(ctx, srv, ln, time.Second, infrastructure.NewDiscardLogger()) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeListener_ForceCloseAfterGrace(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- ServeListener(ctx, srv, ln, 20*time.Millisecond, infrastructure.NewDiscardLogger())
	}()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-entered
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server was not force closed")
	}
}

func TestServeListener_ServeError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	srv := &http.Server{Handler: http.NotFoundHandler()}
	err = ServeListener(context.Background(), srv, ln, time.Second, infrastructure.NewDiscardLogger())
	assert.Error(t, err)
}
