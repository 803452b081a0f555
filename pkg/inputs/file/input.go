package file

/*
 * The file input tails every regular file matching a glob. Each file gets its own worker goroutine
 * which reads newly appended lines, decodes and encodes them and pushes the result onto the queue.
 * One fsnotify watcher per input feeds the workers so inotify instances do not grow with the file count.
 */

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
)

type Input struct {
	config Config
	wg     sync.WaitGroup
}

// NewInput() creates a file input from its yaml config section
func NewInput(node *yaml.Node) (t.Input, error) {
	cfg, err := ParseConfig(node)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(cfg))
	log.Debugf("file input config: %v", string(raw))

	return &Input{config: cfg}, nil
}

// resolve() expands the src glob into absolute paths of regular files
func (i *Input) resolve() ([]string, error) {
	pattern := i.config.Src
	if !filepath.IsAbs(pattern) {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}
		pattern = abs
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid src pattern %q: %w", i.config.Src, err)
	}

	var paths []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, m)
	}
	return paths, nil
}

// Start() opens every matching file and spawns one worker per file. Files are opened and positioned
// before Start returns so that from_tail is relative to the moment the pipeline started. A single
// fsnotify watcher serves all workers, with each containing directory added to it once.
func (i *Input) Start(ctx context.Context, q *queue.Queue, decoder t.Decoder, encoder t.Encoder) error {
	paths, err := i.resolve()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Warnw("no regular file matches src, nothing to tail", "src", i.config.Src)
		return nil
	}

	workers := make(map[string]*worker, len(paths))
	closeAll := func() {
		for _, opened := range workers {
			opened.close()
		}
	}
	for _, path := range paths {
		w, err := newWorker(path, i.config, q, decoder, encoder)
		if err != nil {
			closeAll()
			return err
		}
		workers[w.path] = w
	}

	watcher, err := i.watch(workers)
	if err != nil {
		closeAll()
		return err
	}

	// the dispatcher lives as long as at least one worker does
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	var running sync.WaitGroup

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer func() { _ = watcher.Close() }()
		dispatch(dispatchCtx, watcher, workers)
	}()

	for _, w := range workers {
		i.wg.Add(1)
		running.Add(1)
		go func(w *worker) {
			defer i.wg.Done()
			defer running.Done()
			defer w.close()

			if err := w.run(ctx); err != nil {
				w.logger.Errorf("tailing stopped: %v", err)
				return
			}
			w.logger.Debugf("tailing stopped")
		}(w)
	}

	go func() {
		running.Wait()
		stopDispatch()
	}()
	return nil
}

// watch() creates the shared watcher and registers every distinct directory holding a tailed file
func (i *Input) watch(workers map[string]*worker) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]struct{})
	for path := range workers {
		dir := filepath.Dir(path)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}
	return watcher, nil
}

// dispatch() routes watcher events to the worker owning the event's path. Events for other files in
// a watched directory are ignored.
func dispatch(ctx context.Context, watcher *fsnotify.Watcher, workers map[string]*worker) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if w, ok := workers[filepath.Clean(event.Name)]; ok {
				w.notify(event)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("fsnotify error: %v", err)
		}
	}
}

// Wait() blocks until every worker has exited
func (i *Input) Wait() {
	i.wg.Wait()
}
