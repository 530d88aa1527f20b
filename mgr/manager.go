package mgr

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// ManagerNameSLogKey is used as the logging key for the name of the manager.
var ManagerNameSLogKey = "manager"

// defaultWorkerWaitTimeout is used when WaitForWorkers is called without a timeout.
const defaultWorkerWaitTimeout = 1 * time.Minute

// Manager manages workers and tasks of a module.
type Manager struct {
	name   string
	logger *slog.Logger

	ctx       context.Context
	cancelCtx context.CancelFunc

	workerCnt   atomic.Int32
	workersDone chan struct{}
}

// New returns a new manager.
func New(name string) *Manager {
	m := &Manager{
		name:        name,
		logger:      slog.Default().With(ManagerNameSLogKey, name),
		workersDone: make(chan struct{}, 1),
	}
	m.ctx, m.cancelCtx = context.WithCancel(context.Background())
	return m
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) setName(name string) {
	m.name = name
	m.logger = slog.Default().With(ManagerNameSLogKey, name)
}

// Ctx returns the manager context.
func (m *Manager) Ctx() context.Context {
	return m.ctx
}

// Cancel cancels the manager context.
func (m *Manager) Cancel() {
	m.cancelCtx()
}

// Done returns the context Done channel.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// IsDone checks whether the manager context is done.
func (m *Manager) IsDone() bool {
	return m.ctx.Err() != nil
}

// Reset resets the manager context so it can be started again.
// Must only be called when no workers are running.
func (m *Manager) Reset() {
	if m.IsDone() {
		m.ctx, m.cancelCtx = context.WithCancel(context.Background())
	}
}

// WaitForWorkers waits for all workers of this manager to finish.
// If max is zero, a default timeout is used.
func (m *Manager) WaitForWorkers(max time.Duration) (done bool) {
	if max <= 0 {
		max = defaultWorkerWaitTimeout
	}
	timeout := time.NewTimer(max)
	defer timeout.Stop()

	for {
		if m.workerCnt.Load() <= 0 {
			return true
		}

		select {
		case <-m.workersDone:
		case <-timeout.C:
			return m.workerCnt.Load() <= 0
		}
	}
}

func (m *Manager) workerStart() {
	m.workerCnt.Add(1)
}

func (m *Manager) workerDone() {
	if m.workerCnt.Add(-1) <= 0 {
		select {
		case m.workersDone <- struct{}{}:
		default:
		}
	}
}

// Logger returns the logger used by the manager.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// LogEnabled reports whether the logger emits log records at the given level.
func (m *Manager) LogEnabled(level slog.Level) bool {
	return m.logger.Enabled(m.ctx, level)
}

// Debug logs at LevelDebug.
// The manager context is automatically supplied.
func (m *Manager) Debug(msg string, args ...any) {
	m.writeLog(slog.LevelDebug, msg, args...)
}

// Info logs at LevelInfo.
// The manager context is automatically supplied.
func (m *Manager) Info(msg string, args ...any) {
	m.writeLog(slog.LevelInfo, msg, args...)
}

// Warn logs at LevelWarn.
// The manager context is automatically supplied.
func (m *Manager) Warn(msg string, args ...any) {
	m.writeLog(slog.LevelWarn, msg, args...)
}

// Error logs at LevelError.
// The manager context is automatically supplied.
func (m *Manager) Error(msg string, args ...any) {
	m.writeLog(slog.LevelError, msg, args...)
}

func (m *Manager) writeLog(level slog.Level, msg string, args ...any) {
	writeLog(m.ctx, m.logger, level, msg, args...)
}

// writeLog writes a log record, attributing it to the caller of the
// exported logging method.
func writeLog(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if !logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(4, pcs[:]) // Skip Callers, both writeLog layers and the exported method.
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}
