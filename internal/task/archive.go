// archive.go - Persists finished task snapshots beyond the in-memory registry

package task

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	archiveTimeout    = 5 * time.Second
	archiveQueueDepth = 256
)

// Archiver stores task documents by id. storage.TaskArchive implements it.
type Archiver interface {
	Upsert(ctx context.Context, id string, doc any) error
	Find(ctx context.Context, id string, out any) error
}

// ArchiveWriter copies terminal snapshots to an Archiver from its own goroutine,
// so a slow archive never stalls the task that produced the snapshot.
type ArchiveWriter struct {
	archive Archiver
	queue   chan Task
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewArchiveWriter starts the writer. Close flushes the queue and stops it.
func NewArchiveWriter(a Archiver) *ArchiveWriter {
	w := &ArchiveWriter{
		archive: a,
		queue:   make(chan Task, archiveQueueDepth),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// Observe queues terminal snapshots and never blocks. Register it with Registry.Observe.
func (w *ArchiveWriter) Observe(t Task) {
	if !t.Status.IsTerminal() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		log.WithField("task_id", t.ID).Warn("⚠️  Archive writer closed, task not archived")
		return
	}
	select {
	case w.queue <- t:
	default:
		log.WithField("task_id", t.ID).Warn("⚠️  Archive queue full, task not archived")
	}
}

// Close stops accepting snapshots and waits until queued ones are written.
func (w *ArchiveWriter) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *ArchiveWriter) loop() {
	defer close(w.done)
	for t := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := w.archive.Upsert(ctx, t.ID, t); err != nil {
			log.WithError(err).WithField("task_id", t.ID).Warn("⚠️  Failed to archive task")
		}
		cancel()
	}
}
