package fluentd

/*
 * The fluentd output forwards every record to fluentd's in_forward TCP input under a fixed tag.
 * The encoded record travels in the "message" field of the forwarded event.
 */

import (
	"encoding/json"
	"fmt"
	"time"

	fluent "github.com/lestrrat-go/fluent-client"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
	"xaas-logging.log-shipper/pkg/workerpool"
)

const (
	sinkLabel = "fluentd"

	DefaultAddress     = "127.0.0.1:24224"
	DefaultTag         = "log-shipper"
	DefaultBufferLimit = 8 * 1024 * 1024
)

// Config is the yaml config section of the fluentd output
type Config struct {
	Address     string `json:"address" yaml:"address"`
	Tag         string `json:"tag" yaml:"tag"`
	Buffered    bool   `json:"buffered" yaml:"buffered"`
	BufferLimit int    `json:"buffer_limit" yaml:"buffer_limit"`
	Threads     int    `json:"threads" yaml:"threads"`
}

// ParseConfig() decodes the config section on top of the defaults
func ParseConfig(node *yaml.Node) (Config, error) {
	cfg := Config{
		Address:     DefaultAddress,
		Tag:         DefaultTag,
		BufferLimit: DefaultBufferLimit,
		Threads:     1,
	}
	if node != nil && !node.IsZero() {
		if err := node.Decode(&cfg); err != nil {
			return cfg, err
		}
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return cfg, nil
}

type Output struct {
	config Config
	client fluent.Client
	pool   *workerpool.WorkerPool
	logger *zap.SugaredLogger
}

// NewOutput() creates a fluentd output from its yaml config section
func NewOutput(node *yaml.Node) (t.Output, error) {
	cfg, err := ParseConfig(node)
	if err != nil {
		return nil, err
	}
	return NewOutputWithConfig(cfg)
}

func NewOutputWithConfig(cfg Config) (*Output, error) {
	raw, _ := json.Marshal(log.MaskSensitiveData(cfg))
	log.Debugf("fluentd output config: %v", string(raw))

	// An unbuffered client writes inside Post, so a dead endpoint surfaces as a Post error
	client, err := fluent.New(
		fluent.WithAddress(cfg.Address),
		fluent.WithBuffered(cfg.Buffered),
		fluent.WithBufferLimit(cfg.BufferLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create fluentd client: %w", err)
	}

	return &Output{
		config: cfg,
		client: client,
		logger: log.LoggerWithComponent(monitoring.PROM_LABEL_COMPONENT_OUTPUT, sinkLabel),
	}, nil
}

func (o *Output) Start(q *queue.Queue, merger t.Merger, fatal t.FatalFunc) error {
	if merger != nil {
		o.logger.Warnf("Output framing is ignored with the fluentd output")
	}
	o.logger.Infof("forwarding to fluentd at %s with tag %s", o.config.Address, o.config.Tag)

	o.pool = workerpool.NewWorkerPool("fluentd-output", o.config.Threads, func(nbr int) {
		for {
			data, ok := q.Pop()
			if !ok {
				return
			}
			monitoring.QueueDepth.Set(float64(q.Len()))

			if err := o.post(data); err != nil {
				o.logger.Errorf("fluentd not responsive: %v", err)
				fatal(err)
				return
			}
		}
	})
	o.pool.Start()
	return nil
}

func (o *Output) post(data []byte) error {
	start := time.Now()

	var options []fluent.Option
	if o.config.Buffered {
		options = append(options, fluent.WithSyncAppend(true))
	}
	err := o.client.Post(o.config.Tag, map[string]interface{}{"message": string(data)}, options...)

	status := monitoring.PROM_STATUS_SUCCESS
	if err != nil {
		status = monitoring.PROM_STATUS_FAILED
		monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_OUTPUT, monitoring.PROM_STAGE_DELIVER, sinkLabel)
	} else {
		monitoring.IncCounter(monitoring.RecordsDeliveredCounter, sinkLabel)
	}
	monitoring.Observe(monitoring.SendDurationHistogram, time.Since(start).Seconds(), sinkLabel, status)
	return err
}

// Wait() blocks until every worker has exited, then flushes and closes the client
func (o *Output) Wait() {
	if o.pool == nil {
		return
	}
	o.pool.Wait()
	if err := o.client.Close(); err != nil {
		o.logger.Warnf("failed to close fluentd client: %v", err)
	}
}
