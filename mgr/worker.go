package mgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// WorkerNameSLogKey is used as the logging key for the name of the worker.
var WorkerNameSLogKey = "worker"

// ErrPanic is returned when a worker panicked.
var ErrPanic = errors.New("worker panic")

// WorkerCtx provides workers with the necessary environment for flow control
// and logging.
type WorkerCtx struct {
	name      string
	ctx       context.Context
	cancelCtx context.CancelFunc

	mgr    *Manager
	logger *slog.Logger
}

type workerCtxKey struct{}

// AddToCtx adds the WorkerCtx to the given context.
func (w *WorkerCtx) AddToCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, workerCtxKey{}, w)
}

// WorkerFromCtx returns the WorkerCtx from the given context.
func WorkerFromCtx(ctx context.Context) *WorkerCtx {
	v := ctx.Value(workerCtxKey{})
	if w, ok := v.(*WorkerCtx); ok {
		return w
	}
	return nil
}

// Name returns the worker name.
func (w *WorkerCtx) Name() string {
	return w.name
}

// Ctx returns the worker context.
func (w *WorkerCtx) Ctx() context.Context {
	return w.ctx
}

// Cancel cancels the worker context.
func (w *WorkerCtx) Cancel() {
	w.cancelCtx()
}

// Done returns the context Done channel.
func (w *WorkerCtx) Done() <-chan struct{} {
	return w.ctx.Done()
}

// IsDone checks whether the worker context is done.
func (w *WorkerCtx) IsDone() bool {
	return w.ctx.Err() != nil
}

// Manager returns the manager of the worker.
func (w *WorkerCtx) Manager() *Manager {
	return w.mgr
}

// Logger returns the logger used by the worker.
func (w *WorkerCtx) Logger() *slog.Logger {
	return w.logger
}

// LogEnabled reports whether the logger emits log records at the given level.
func (w *WorkerCtx) LogEnabled(level slog.Level) bool {
	return w.logger.Enabled(w.ctx, level)
}

// Log logs at the given level.
// The worker context is automatically supplied.
func (w *WorkerCtx) Log(level slog.Level, msg string, args ...any) {
	w.writeLog(level, msg, args...)
}

// Debug logs at LevelDebug.
// The worker context is automatically supplied.
func (w *WorkerCtx) Debug(msg string, args ...any) {
	w.writeLog(slog.LevelDebug, msg, args...)
}

// Info logs at LevelInfo.
// The worker context is automatically supplied.
func (w *WorkerCtx) Info(msg string, args ...any) {
	w.writeLog(slog.LevelInfo, msg, args...)
}

// Warn logs at LevelWarn.
// The worker context is automatically supplied.
func (w *WorkerCtx) Warn(msg string, args ...any) {
	w.writeLog(slog.LevelWarn, msg, args...)
}

// Error logs at LevelError.
// The worker context is automatically supplied.
func (w *WorkerCtx) Error(msg string, args ...any) {
	w.writeLog(slog.LevelError, msg, args...)
}

func (w *WorkerCtx) writeLog(level slog.Level, msg string, args ...any) {
	writeLog(w.ctx, w.logger, level, msg, args...)
}

func (m *Manager) newWorkerCtx(name string) *WorkerCtx {
	w := &WorkerCtx{
		name:   name,
		mgr:    m,
		logger: m.logger.With(WorkerNameSLogKey, name),
	}
	w.ctx, w.cancelCtx = context.WithCancel(m.ctx)
	return w
}

// Go starts the given function in a goroutine (as a "worker").
// Errors are logged, panics are recovered and logged.
func (m *Manager) Go(name string, fn func(w *WorkerCtx) error) {
	m.workerStart()
	go func() {
		defer m.workerDone()
		_ = m.runWorker(m.newWorkerCtx(name), fn)
	}()
}

// Do directly executes the given function (as a "worker").
// Errors are logged, panics are recovered and logged.
// The error is also returned.
func (m *Manager) Do(name string, fn func(w *WorkerCtx) error) error {
	m.workerStart()
	defer m.workerDone()

	return m.runWorker(m.newWorkerCtx(name), fn)
}

func (m *Manager) runWorker(w *WorkerCtx, fn func(w *WorkerCtx) error) (err error) {
	defer w.cancelCtx()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, p)
			w.Error(
				"worker panicked",
				"panic", p,
				"stack", string(debug.Stack()),
			)
		}
	}()

	err = fn(w)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && m.IsDone():
		// Cancellation on shutdown is expected.
	default:
		w.Error("worker failed", "err", err)
	}
	return err
}
