// Package watcher runs the detection/response loop: it consumes
// filesystem change events from the watched directories, applies
// detection heuristics, and triggers a containment snapshot when any
// signal fires.
//
// The arrangement is a single consumer draining a bounded queue fed by
// the fsnotify delivery goroutine. Detection and any triggered snapshot
// run synchronously on the consumer: containment completes before
// monitoring resumes, at the cost of detection latency during a large
// snapshot.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"rxguard-go/internal/alertlog"
	"rxguard-go/internal/guard"
	"rxguard-go/internal/repo"
)

const (
	// queueCap bounds the in-memory event queue. When the queue is
	// full the oldest event is dropped; under an event storm the surge
	// signal only needs the recent window, so old events are the right
	// ones to shed.
	queueCap = 1024
	// drainBatch is the maximum number of events consumed per cycle.
	drainBatch = 100
	// drainWait is how long a cycle waits for the first event before
	// retrying.
	drainWait = time.Second
	// joinTimeout bounds how long teardown waits for the event
	// producer to exit.
	joinTimeout = 5 * time.Second
)

// Snapshotter creates containment snapshots. *repo.Repo satisfies it.
type Snapshotter interface {
	CreateSnapshot(label string) (*repo.Snapshot, error)
}

// CanaryChecker reports the number of tampered canaries.
type CanaryChecker interface {
	Check() (int, error)
}

// AlertSink records raised alerts. May be nil to disable recording.
type AlertSink interface {
	Record(a alertlog.Alert) error
}

// Options configures a Watcher.
type Options struct {
	DataDirs             []string
	SurgeThreshold       int
	EntropyThreshold     float64
	SuspiciousExtensions []string
	Cooldown             time.Duration
}

// Watcher is the detection/response loop. It is not safe for
// concurrent use; one goroutine calls Run and everything else happens
// inside it.
type Watcher struct {
	dataDirs         []string
	surgeThreshold   int
	entropyThreshold float64
	suspiciousExts   []string
	cooldown         time.Duration

	repo   Snapshotter
	canary CanaryChecker
	alerts AlertSink
	logger guard.Logger
	clock  guard.Clock
	idgen  guard.IDGenerator

	fsw      *fsnotify.Watcher
	events   chan string
	dropped  atomic.Uint64
	producer chan struct{} // closed when the producer goroutine exits

	// window holds one timestamp per observed event, pruned to the
	// trailing surge window before each check.
	window []time.Time
}

// New creates a Watcher. The filesystem subscription is not started
// until Run.
func New(opts Options, snap Snapshotter, canary CanaryChecker, alerts AlertSink, logger guard.Logger, clock guard.Clock, idgen guard.IDGenerator) *Watcher {
	return &Watcher{
		dataDirs:         opts.DataDirs,
		surgeThreshold:   opts.SurgeThreshold,
		entropyThreshold: opts.EntropyThreshold,
		suspiciousExts:   opts.SuspiciousExtensions,
		cooldown:         opts.Cooldown,
		repo:             snap,
		canary:           canary,
		alerts:           alerts,
		logger:           logger,
		clock:            clock,
		idgen:            idgen,
		events:           make(chan string, queueCap),
		producer:         make(chan struct{}),
	}
}

// Run starts the filesystem subscription and loops until ctx is
// cancelled. Errors inside a single detection cycle are logged and the
// loop continues; only subscription setup failures are returned.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.subscribe(); err != nil {
		return err
	}
	defer w.teardown()

	w.logger.Info("watcher started", "dirs", len(w.dataDirs))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return nil
		default:
		}

		paths := w.drain(ctx)
		if len(paths) == 0 {
			continue
		}

		result := w.detect(paths)
		if !result.Alert() {
			continue
		}
		w.respond(ctx, result, len(paths))
	}
}

// subscribe registers fsnotify watches over every data directory and
// its subdirectories (fsnotify is non-recursive) and starts the
// producer goroutine feeding the bounded queue.
func (w *Watcher) subscribe() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	w.fsw = fsw

	for _, dir := range w.dataDirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return fsw.Add(path)
			}
			return nil
		})
		if err != nil {
			fsw.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	go w.produce()
	return nil
}

// produce forwards relevant fsnotify events into the bounded queue,
// dropping the oldest queued event when full. New directories are added
// to the watch set as they appear.
func (w *Watcher) produce() {
	defer close(w.producer)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				// A newly created directory needs its own watch; adding
				// a plain file is harmless and avoids a stat race.
				_ = w.fsw.Add(ev.Name)
			}
			w.enqueue(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", "error", err)
		}
	}
}

func (w *Watcher) enqueue(path string) {
	for {
		select {
		case w.events <- path:
			return
		default:
		}
		select {
		case <-w.events:
			w.dropped.Add(1)
		default:
		}
	}
}

// drain collects up to drainBatch queued event paths, waiting up to
// drainWait for the first one. An empty result means the cycle should
// retry without running detection.
func (w *Watcher) drain(ctx context.Context) []string {
	var paths []string

	timer := time.NewTimer(drainWait)
	defer timer.Stop()
	select {
	case p := <-w.events:
		paths = append(paths, p)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}

	for len(paths) < drainBatch {
		select {
		case p := <-w.events:
			paths = append(paths, p)
		default:
			return paths
		}
	}
	return paths
}

// respond handles a raised alert: log the fired signals, take a
// containment snapshot, record the alert, and sleep the cooldown.
// Snapshot failure is reported, not fatal; events keep accumulating in
// the queue during the cooldown.
func (w *Watcher) respond(ctx context.Context, result DetectionResult, eventCount int) {
	signals := result.Signals()
	w.logger.Warn("suspicious activity detected",
		"signals", signals, "events", eventCount, "dropped", w.dropped.Load())

	alert := alertlog.Alert{
		ID:         w.idgen.New(),
		DetectedAt: w.clock.Now(),
		Signals:    signals,
		EventCount: eventCount,
	}

	snap, err := w.repo.CreateSnapshot("auto-alert")
	if err != nil {
		w.logger.Error("containment snapshot failed", "error", err)
		alert.Error = err.Error()
	} else {
		w.logger.Info("containment snapshot created", "id", snap.ID, "files", len(snap.Files))
		alert.SnapshotID = snap.ID
		alert.SnapshotOK = true
	}

	if w.alerts != nil {
		if err := w.alerts.Record(alert); err != nil {
			w.logger.Error("recording alert failed", "error", err)
		}
	}

	select {
	case <-time.After(w.cooldown):
	case <-ctx.Done():
	}
}

// teardown closes the filesystem subscription and joins the producer
// with a bounded timeout.
func (w *Watcher) teardown() {
	if w.fsw == nil {
		return
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing filesystem watcher", "error", err)
	}
	select {
	case <-w.producer:
	case <-time.After(joinTimeout):
		w.logger.Warn("event producer did not exit before timeout")
	}
}

// DroppedEvents returns how many events were shed because the queue
// was full.
func (w *Watcher) DroppedEvents() uint64 {
	return w.dropped.Load()
}
