package accesslog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bastion-web/bastion/pkg/config"
)

const writeTimeout = 5 * time.Second

// Recorder enqueues entries for asynchronous persistence so request
// handling never blocks on the log backend. A full queue drops the entry
// and counts the drop; requests always come first.
type Recorder struct {
	backend Backend
	entries chan *Entry
	dropped atomic.Int64

	cron   *cron.Cron
	wg     sync.WaitGroup
	done   chan struct{}
	logger *slog.Logger
}

// NewRecorder opens the configured backend and starts the write worker.
// With scheduled rotation configured it also starts the rotation cron;
// validation has already checked the schedule expression.
func NewRecorder(cfg config.AccessLogConfig, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, err
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = config.DefaultAccessLogBufferSize
	}

	r := &Recorder{
		backend: backend,
		entries: make(chan *Entry, bufferSize),
		done:    make(chan struct{}),
		logger:  logger.With("component", "accesslog"),
	}

	r.wg.Add(1)
	go r.worker()

	if cfg.RotateSchedule != "" {
		rotatable, ok := backend.(Rotatable)
		if ok {
			r.cron = cron.New()
			if _, err := r.cron.AddFunc(cfg.RotateSchedule, func() { r.rotate(rotatable) }); err != nil {
				r.Close()
				return nil, err
			}
			r.cron.Start()
		} else {
			r.logger.Warn("rotation schedule ignored, backend does not rotate", "backend", cfg.Backend)
		}
	}

	r.logger.Info("access log recorder started",
		"backend", cfg.Backend,
		"path", cfg.Path,
		"buffer_size", bufferSize,
	)
	return r, nil
}

// Record enqueues an entry. It never blocks: when the queue is full the
// entry is dropped and the drop counted.
func (r *Recorder) Record(e *Entry) {
	select {
	case r.entries <- e:
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			r.logger.Warn("access log queue full, dropping entries", "dropped_total", n)
		}
	}
}

// Dropped returns how many entries were dropped to a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops rotation, drains the queue, and closes the backend.
func (r *Recorder) Close() error {
	if r.cron != nil {
		r.cron.Stop()
	}
	close(r.done)
	r.wg.Wait()
	return r.backend.Close()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.entries:
			r.write(e)
		case <-r.done:
			for {
				select {
				case e := <-r.entries:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.backend.Write(ctx, e); err != nil {
		r.logger.Error("failed to write access log entry",
			"entry_id", e.ID,
			"error", err,
		)
	}
}

func (r *Recorder) rotate(b Rotatable) {
	if err := b.Rotate(); err != nil {
		r.logger.Error("access log rotation failed", "error", err)
		return
	}
	r.logger.Info("access log rotated")
}
