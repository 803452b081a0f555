package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
)

var ErrFileRemoved = errors.New("tailed file no longer exists")

// followReader checks that the path still exists before every read of the open handle. Reading
// through a handle to an unlinked file would otherwise keep succeeding silently.
type followReader struct {
	path string
	file *os.File
}

func (r *followReader) Read(p []byte) (int, error) {
	if _, err := os.Stat(r.path); err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrFileRemoved, r.path)
		}
		return 0, err
	}
	return r.file.Read(p)
}

type worker struct {
	path     string
	interval time.Duration
	file     *os.File
	reader   *bufio.Reader
	offset   int64
	pending  []byte

	// changed holds at most one pending wakeup; removed sticks once the file is gone
	changed chan struct{}
	removed atomic.Bool

	queue   *queue.Queue
	decoder t.Decoder
	encoder t.Encoder
	logger  *zap.SugaredLogger
}

// newWorker() opens the file and positions it at the end when fromTail is set
func newWorker(path string, cfg Config, q *queue.Queue, decoder t.Decoder, encoder t.Encoder) (*worker, error) {
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var offset int64
	if cfg.FromTail {
		offset, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	w := &worker{
		path:     path,
		interval: cfg.watchInterval(),
		file:     f,
		offset:   offset,
		queue:    q,
		decoder:  decoder,
		encoder:  encoder,
		logger:   log.LoggerWithComponent(monitoring.PROM_LABEL_COMPONENT_INPUT, path),
		changed:  make(chan struct{}, 1),
	}
	w.reader = bufio.NewReader(&followReader{path: path, file: f})
	return w, nil
}

func (w *worker) close() {
	_ = w.file.Close()
}

// notify() records a watcher event for this file. It never blocks, so a worker stuck on a full
// queue cannot stall the other workers sharing the watcher.
func (w *worker) notify(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.removed.Store(true)
	}
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// run() drains the file whenever the watcher reports a change. It returns nil when ctx is cancelled
// and an error when the file can no longer be read.
func (w *worker) run(ctx context.Context) error {
	w.logger.Infof("tailing %s from offset %d", w.path, w.offset)

	// content written before the watch was registered
	if err := w.drain(ctx); err != nil {
		return w.stopped(ctx, err)
	}

	// Events arriving within one interval are coalesced into a single drain
	var due <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.changed:
			if w.removed.Load() {
				return fmt.Errorf("%w: %s", ErrFileRemoved, w.path)
			}
			if w.interval == 0 {
				if err := w.drain(ctx); err != nil {
					return w.stopped(ctx, err)
				}
				continue
			}
			if due == nil {
				due = time.After(w.interval)
			}

		case <-due:
			due = nil
			if err := w.drain(ctx); err != nil {
				return w.stopped(ctx, err)
			}
		}
	}
}

// stopped() hides errors caused by shutdown
func (w *worker) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// drain() reads every complete line appended since the last call. A trailing fragment without a
// terminator is kept in pending until a later drain completes it.
func (w *worker) drain(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileRemoved, w.path)
		}
		return err
	}

	if info.Size() < w.offset {
		w.logger.Infof("truncation detected, restarting from the beginning of %s", w.path)
		if _, err := w.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		w.reader.Reset(&followReader{path: w.path, file: w.file})
		w.offset = 0
		w.pending = nil
	}

	for {
		chunk, err := w.reader.ReadBytes('\n')
		w.offset += int64(len(chunk))

		if err == io.EOF {
			w.pending = append(w.pending, chunk...)
			return nil
		}
		if err != nil {
			monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_INPUT, monitoring.PROM_STAGE_READ, errorLabel(err))
			return err
		}

		line := chunk[:len(chunk)-1]
		if len(w.pending) > 0 {
			line = append(w.pending, line...)
			w.pending = nil
		}

		if err := w.handleLine(ctx, line); err != nil {
			return err
		}
	}
}

// handleLine() decodes and encodes one complete line and queues the result. Decode and encode
// failures are logged and skipped. Only a cancelled push is returned.
func (w *worker) handleLine(ctx context.Context, line []byte) error {
	monitoring.IncCounter(monitoring.LinesReadCounter, w.path)

	record, err := w.decoder.Decode(string(line))
	if err != nil {
		w.logger.Errorf("%v: [%s]", err, line)
		monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_INPUT, monitoring.PROM_STAGE_DECODE, errorLabel(err))
		return nil
	}

	encoded, err := w.encoder.Encode(record)
	if err != nil {
		w.logger.Errorf("%v: [%s]", err, line)
		monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_INPUT, monitoring.PROM_STAGE_ENCODE, errorLabel(err))
		return nil
	}

	if err := w.queue.Push(ctx, encoded); err != nil {
		return err
	}
	monitoring.IncCounter(monitoring.RecordsEnqueuedCounter, w.path)
	monitoring.QueueDepth.Set(float64(w.queue.Len()))
	return nil
}

// errorLabel() keeps metric label cardinality bounded by dropping the detail after the first colon
func errorLabel(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, ':'); i > 0 {
		return msg[:i]
	}
	return msg
}
