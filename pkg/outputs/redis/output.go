package redis

/*
 * The redis output publishes every record to a pub/sub channel or appends it to a list with RPUSH.
 */

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
	"xaas-logging.log-shipper/pkg/workerpool"
)

const (
	sinkLabel = "redis"

	ModePublish = "publish"
	ModeRPush   = "rpush"

	DefaultAddr      = "localhost:6379"
	DefaultTimeoutMs = 5000
)

var (
	ErrInvalidMode    = errors.New("invalid redis mode, must be one of: publish, rpush")
	ErrMissingChannel = errors.New("redis publish mode requires a channel")
	ErrMissingKey     = errors.New("redis rpush mode requires a key")
)

// Config is the yaml config section of the redis output
type Config struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password" mask:"password"`
	DB        int    `json:"db" yaml:"db"`
	Mode      string `json:"mode" yaml:"mode"`
	Channel   string `json:"channel" yaml:"channel"`
	Key       string `json:"key" yaml:"key"`
	Threads   int    `json:"threads" yaml:"threads"`
	TimeoutMs int    `json:"timeout" yaml:"timeout"`
}

// ParseConfig() decodes the config section on top of the defaults and validates it
func ParseConfig(node *yaml.Node) (Config, error) {
	cfg := Config{
		Addr:      DefaultAddr,
		Mode:      ModePublish,
		Threads:   1,
		TimeoutMs: DefaultTimeoutMs,
	}
	if node != nil && !node.IsZero() {
		if err := node.Decode(&cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModePublish:
		if c.Channel == "" {
			return ErrMissingChannel
		}
	case ModeRPush:
		if c.Key == "" {
			return ErrMissingKey
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	return nil
}

type Output struct {
	config Config
	client *redis.Client
	pool   *workerpool.WorkerPool
	logger *zap.SugaredLogger
}

// NewOutput() creates a redis output from its yaml config section
func NewOutput(node *yaml.Node) (t.Output, error) {
	cfg, err := ParseConfig(node)
	if err != nil {
		return nil, err
	}
	return NewOutputWithConfig(cfg), nil
}

func NewOutputWithConfig(cfg Config) *Output {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(cfg))
	log.Debugf("redis output config: %v", string(raw))

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	options := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.Threads,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   -1,
	}

	return &Output{
		config: cfg,
		client: redis.NewClient(options),
		logger: log.LoggerWithComponent(monitoring.PROM_LABEL_COMPONENT_OUTPUT, sinkLabel),
	}
}

// Start() pings the server so that an unreachable redis is a startup error
func (o *Output) Start(q *queue.Queue, merger t.Merger, fatal t.FatalFunc) error {
	if merger != nil {
		o.logger.Warnf("Output framing is ignored with the Redis output")
	}

	if err := o.client.Ping(context.Background()).Err(); err != nil {
		_ = o.client.Close()
		monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_OUTPUT, monitoring.PROM_STAGE_DELIVER, "connect")
		return fmt.Errorf("unable to connect to redis at %s: %w", o.config.Addr, err)
	}
	o.logger.Infof("connected to redis at %s, mode %s", o.config.Addr, o.config.Mode)

	o.pool = workerpool.NewWorkerPool("redis-output", o.config.Threads, func(nbr int) {
		for {
			data, ok := q.Pop()
			if !ok {
				return
			}
			monitoring.QueueDepth.Set(float64(q.Len()))

			if err := o.deliver(context.Background(), data); err != nil {
				o.logger.Errorf("Redis not responsive: %v", err)
				fatal(err)
				return
			}
		}
	})
	o.pool.Start()
	return nil
}

func (o *Output) deliver(ctx context.Context, data []byte) error {
	start := time.Now()

	var err error
	if o.config.Mode == ModeRPush {
		err = o.client.RPush(ctx, o.config.Key, data).Err()
	} else {
		err = o.client.Publish(ctx, o.config.Channel, data).Err()
	}

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

// Wait() blocks until every worker has exited, then closes the client
func (o *Output) Wait() {
	if o.pool == nil {
		return
	}
	o.pool.Wait()
	if err := o.client.Close(); err != nil {
		o.logger.Debugf("closing redis client: %v", err)
	}
}
