package kafka

/*
 * The kafka output drains the pipeline queue into a topic with a pool of sync producers, one per
 * thread. With coalesce > 1 each worker accumulates records and submits them as one multi-message
 * send. Any send failure is fatal and reported to the pipeline.
 */

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
	"xaas-logging.log-shipper/pkg/workerpool"
)

const sinkLabel = "kafka"

// ProducerFactory creates a connected sync producer. sarama.NewSyncProducer is the production factory.
type ProducerFactory func(brokers []string, config *sarama.Config) (sarama.SyncProducer, error)

type Output struct {
	config       Config
	saramaConfig *sarama.Config
	newProducer  ProducerFactory
	pool         *workerpool.WorkerPool
	logger       *zap.SugaredLogger
}

// NewOutput() creates a kafka output from its yaml config section
func NewOutput(node *yaml.Node) (t.Output, error) {
	cfg, err := ParseConfig(node)
	if err != nil {
		return nil, err
	}
	return NewOutputWithProducer(cfg, sarama.NewSyncProducer)
}

// NewOutputWithProducer() creates a kafka output that obtains its producers from factory
func NewOutputWithProducer(cfg Config, factory ProducerFactory) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	saramaConfig, err := NewSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(cfg))
	log.Debugf("kafka output config: %v", string(raw))

	return &Output{
		config:       cfg,
		saramaConfig: saramaConfig,
		newProducer:  factory,
		logger:       log.LoggerWithComponent(monitoring.PROM_LABEL_COMPONENT_OUTPUT, sinkLabel),
	}, nil
}

// Start() connects one producer per thread before any record is consumed so that an unreachable
// cluster is a startup error
func (o *Output) Start(q *queue.Queue, merger t.Merger, fatal t.FatalFunc) error {
	if merger != nil {
		o.logger.Warnf("Output framing is ignored with the Kafka output")
	}

	producers := make([]sarama.SyncProducer, 0, o.config.Threads)
	for i := 0; i < o.config.Threads; i++ {
		p, err := o.newProducer(o.config.Brokers, o.saramaConfig)
		if err != nil {
			for _, opened := range producers {
				_ = opened.Close()
			}
			monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_OUTPUT, monitoring.PROM_STAGE_DELIVER, "connect")
			return fmt.Errorf("unable to connect to the kafka cluster %v: %w", o.config.Brokers, err)
		}
		producers = append(producers, p)
	}
	o.logger.Infof("connected %d producer(s) to %v, topic %s", len(producers), o.config.Brokers, o.config.Topic)

	o.pool = workerpool.NewWorkerPool("kafka-output", o.config.Threads, func(nbr int) {
		p := producers[nbr]
		defer func() {
			if err := p.Close(); err != nil {
				o.logger.Warnf("failed to close producer #%d: %v", nbr, err)
			}
		}()

		var err error
		if o.config.Coalesce <= 1 {
			err = o.runUnbatched(p, q)
		} else {
			err = o.runBatched(p, q)
		}
		if err != nil {
			o.logger.Errorf("Kafka not responsive: %v", err)
			fatal(err)
		}
	})
	o.pool.Start()
	return nil
}

// Wait() blocks until every worker has exited
func (o *Output) Wait() {
	if o.pool != nil {
		o.pool.Wait()
	}
}

func (o *Output) message(data []byte) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic: o.config.Topic,
		Value: sarama.ByteEncoder(data),
	}
}

// runUnbatched() sends every record as soon as it is dequeued
func (o *Output) runUnbatched(p sarama.SyncProducer, q *queue.Queue) error {
	for {
		data, ok := q.Pop()
		if !ok {
			return nil
		}
		monitoring.QueueDepth.Set(float64(q.Len()))

		start := time.Now()
		_, _, err := p.SendMessage(o.message(data))
		o.observe(start, 1, err)
		if err != nil {
			return err
		}
	}
}

// runBatched() submits records in groups of coalesce. A partial batch still buffered when the queue
// reaches end-of-stream is sent before returning.
func (o *Output) runBatched(p sarama.SyncProducer, q *queue.Queue) error {
	batch := make([]*sarama.ProducerMessage, 0, o.config.Coalesce)

	send := func() error {
		start := time.Now()
		err := p.SendMessages(batch)
		o.observe(start, len(batch), err)
		batch = make([]*sarama.ProducerMessage, 0, o.config.Coalesce)
		return err
	}

	for {
		data, ok := q.Pop()
		if !ok {
			if len(batch) > 0 {
				return send()
			}
			return nil
		}
		monitoring.QueueDepth.Set(float64(q.Len()))

		batch = append(batch, o.message(data))
		if len(batch) >= o.config.Coalesce {
			if err := send(); err != nil {
				return err
			}
		}
	}
}

func (o *Output) observe(start time.Time, n int, err error) {
	status := monitoring.PROM_STATUS_SUCCESS
	if err != nil {
		status = monitoring.PROM_STATUS_FAILED
		monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_OUTPUT, monitoring.PROM_STAGE_DELIVER, sinkLabel)
	} else {
		monitoring.AddCounter(monitoring.RecordsDeliveredCounter, float64(n), sinkLabel)
	}
	monitoring.Observe(monitoring.SendDurationHistogram, time.Since(start).Seconds(), sinkLabel, status)
	monitoring.Observe(monitoring.BatchSizeHistogram, float64(n), sinkLabel)
}
