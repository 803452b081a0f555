package file

/*
 * The file output appends framed records to a local file which is rotated by size.
 */

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/mergers"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
	"xaas-logging.log-shipper/pkg/workerpool"
)

const sinkLabel = "file"

var ErrMissingPath = errors.New("file output requires a path")

// Config is the yaml config section of the file output
type Config struct {
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// ParseConfig() decodes the config section on top of the defaults and validates it
func ParseConfig(node *yaml.Node) (Config, error) {
	cfg := Config{
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
	if node != nil && !node.IsZero() {
		if err := node.Decode(&cfg); err != nil {
			return cfg, err
		}
	}
	if cfg.Path == "" {
		return cfg, ErrMissingPath
	}
	return cfg, nil
}

type Output struct {
	config Config
	mu     sync.Mutex
	writer *lumberjack.Logger
	pool   *workerpool.WorkerPool
	logger *zap.SugaredLogger
}

// NewOutput() creates a file output from its yaml config section
func NewOutput(node *yaml.Node) (t.Output, error) {
	cfg, err := ParseConfig(node)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(cfg))
	log.Debugf("file output config: %v", string(raw))

	return &Output{
		config: cfg,
		writer: &lumberjack.Logger{
			Filename:   filepath.Clean(cfg.Path),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		logger: log.LoggerWithComponent(monitoring.PROM_LABEL_COMPONENT_OUTPUT, sinkLabel),
	}, nil
}

// Start() runs a single writer. Records without a configured merger are written one per line.
func (o *Output) Start(q *queue.Queue, merger t.Merger, fatal t.FatalFunc) error {
	if merger == nil {
		merger = mergers.NewLineMerger()
	}

	o.pool = workerpool.NewWorkerPool("file-output", 1, func(nbr int) {
		for {
			data, ok := q.Pop()
			if !ok {
				return
			}
			monitoring.QueueDepth.Set(float64(q.Len()))

			if err := o.write(merger.Frame(data)); err != nil {
				o.logger.Errorf("failed to write to %s: %v", o.config.Path, err)
				fatal(err)
				return
			}
		}
	})
	o.pool.Start()
	return nil
}

func (o *Output) write(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, err := o.writer.Write(data)
	if err != nil {
		monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_OUTPUT, monitoring.PROM_STAGE_DELIVER, sinkLabel)
		return err
	}
	monitoring.IncCounter(monitoring.RecordsDeliveredCounter, sinkLabel)
	return nil
}

// Wait() blocks until the writer has drained the queue, then closes the file
func (o *Output) Wait() {
	if o.pool == nil {
		return
	}
	o.pool.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.writer.Close(); err != nil {
		o.logger.Warnf("failed to close %s: %v", o.config.Path, err)
	}
}
