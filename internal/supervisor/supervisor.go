package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned by Run when tasks are still running after
// the shutdown grace and the force-close window.
var ErrShutdownTimeout = errors.New("tasks did not stop within shutdown grace")

// forceCloseWindow is how long Run keeps waiting after the grace expired,
// giving tasks time to force-close their resources.
const forceCloseWindow = time.Second

// Task is one supervised unit of work. Run must return once ctx is done.
type Task struct {
	Name string
	// Delay postpones the start of Run. A cancel during the delay skips the task.
	Delay time.Duration
	Run   func(ctx context.Context) error
}

// Supervisor runs tasks side by side. The first task error, or the
// cancellation of the parent context, stops every task.
type Supervisor struct {
	tasks  []Task
	grace  time.Duration
	logger *slog.Logger
}

// New creates a Supervisor that waits up to grace for tasks to stop.
func New(grace time.Duration, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		grace:  grace,
		logger: logger.With(slog.String("component", "supervisor")),
	}
}

// Add registers a task. Tasks start in registration order, each after its Delay.
func (s *Supervisor) Add(t Task) {
	s.tasks = append(s.tasks, t)
}

// Grace returns the shutdown grace handed to tasks.
func (s *Supervisor) Grace() time.Duration {
	return s.grace
}

// Run starts all tasks and blocks until they have stopped. A clean
// shutdown triggered by ctx returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			return s.runTask(gctx, t)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return s.result(ctx, err)
	case <-gctx.Done():
	}

	s.logger.Info("stopping tasks", slog.Duration("grace", s.grace))

	timer := time.NewTimer(s.grace + forceCloseWindow)
	defer timer.Stop()

	select {
	case err := <-done:
		return s.result(ctx, err)
	case <-timer.C:
		s.logger.Error("tasks still running after shutdown grace")
		return ErrShutdownTimeout
	}
}

func (s *Supervisor) runTask(ctx context.Context, t Task) error {
	if t.Delay > 0 {
		timer := time.NewTimer(t.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("task skipped", slog.String("task", t.Name))
			return nil
		case <-timer.C:
		}
	}

	s.logger.Info("task started", slog.String("task", t.Name))
	err := t.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("task failed",
			slog.String("task", t.Name),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", t.Name, err)
	}

	s.logger.Info("task stopped", slog.String("task", t.Name))
	return nil
}

func (s *Supervisor) result(ctx context.Context, err error) error {
	if err == nil {
		s.logger.Info("all tasks stopped")
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HTTPTask serves srv until ctx is done, then shuts it down. Requests still
// in flight after grace are cut off with srv.Close.
func HTTPTask(name string, srv *http.Server, grace time.Duration, logger *slog.Logger) Task {
	return Task{
		Name: name,
		Run: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return ServeListener(ctx, srv, ln, grace, logger)
		},
	}
}

// ServeListener serves srv on ln until ctx is done or the server fails.
func ServeListener(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete, force closing",
			slog.String("addr", ln.Addr().String()),
			slog.String("error", err.Error()))
		if cerr := srv.Close(); cerr != nil {
			return fmt.Errorf("force close: %w", cerr)
		}
	}

	<-errCh
	return nil
}
