package pipeline

/*
 * Pipeline wires one input to one output through a bounded queue:
 *
 *   input workers --decode/encode--> queue --> output workers --frame/send--> sink
 *
 * Shutdown is input first. Inputs are cancelled, the queue is closed once they have exited and the
 * outputs drain what is left. A fatal sink error stops the run and is returned to the caller.
 */

import (
	"context"
	"fmt"

	"xaas-logging.log-shipper/pkg/decoders"
	"xaas-logging.log-shipper/pkg/encoders"
	"xaas-logging.log-shipper/pkg/inputs"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/mergers"
	"xaas-logging.log-shipper/pkg/outputs"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
)

type Pipeline struct {
	queueSize int
	decoder   t.Decoder
	encoder   t.Encoder
	merger    t.Merger
	input     t.Input
	output    t.Output
}

// New() resolves every component named in the config. Nothing is started, so any configuration
// error is reported before a file is opened or a connection is made.
func New(cfg *ShipperYaml) (*Pipeline, error) {
	decoder, err := decoders.CreateDecoder(cfg.Input.Format)
	if err != nil {
		return nil, fmt.Errorf("input format: %w", err)
	}
	encoder, err := encoders.CreateEncoder(cfg.Output.Format)
	if err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}
	merger, err := mergers.CreateMerger(cfg.Output.Framing)
	if err != nil {
		return nil, fmt.Errorf("output framing: %w", err)
	}
	input, err := inputs.CreateInput(cfg.Input.Type, &cfg.Input.Config)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", cfg.Input.Type, err)
	}
	output, err := outputs.CreateOutput(cfg.Output.Type, &cfg.Output.Config)
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", cfg.Output.Type, err)
	}
	return NewWithComponents(cfg.QueueSize, decoder, encoder, merger, input, output), nil
}

// NewWithComponents() builds a pipeline from already constructed components
func NewWithComponents(queueSize int, decoder t.Decoder, encoder t.Encoder, merger t.Merger, input t.Input, output t.Output) *Pipeline {
	if queueSize < 1 {
		queueSize = queue.DefaultSize
	}
	return &Pipeline{
		queueSize: queueSize,
		decoder:   decoder,
		encoder:   encoder,
		merger:    merger,
		input:     input,
		output:    output,
	}
}

// Run() starts the output then the input and blocks. It returns nil after an orderly shutdown
// triggered by ctx, or the first fatal sink error.
func (p *Pipeline) Run(ctx context.Context) error {
	q := queue.New(p.queueSize)

	fatalCh := make(chan error, 1)
	fatal := func(err error) {
		select {
		case fatalCh <- err:
		default:
		}
	}

	if err := p.output.Start(q, p.merger, fatal); err != nil {
		return err
	}

	inputCtx, cancelInputs := context.WithCancel(ctx)
	defer cancelInputs()

	if err := p.input.Start(inputCtx, q, p.decoder, p.encoder); err != nil {
		q.Close()
		p.output.Wait()
		return err
	}
	log.Infow("pipeline running", "queue_size", p.queueSize)

	inputsDone := make(chan struct{})
	go func() {
		p.input.Wait()
		close(inputsDone)
	}()

	// outputs keep running when every input worker has stopped on its own
	idle := inputsDone
	for {
		select {
		case <-idle:
			log.Warnf("every input worker has stopped, waiting for shutdown")
			idle = nil

		case <-ctx.Done():
			log.Infof("stopping inputs")
			cancelInputs()
			<-inputsDone
			q.Close()
			log.Infof("draining %d queued record(s)", q.Len())
			p.output.Wait()
			select {
			case err := <-fatalCh:
				return err
			default:
				return nil
			}

		case err := <-fatalCh:
			log.Errorf("fatal output error, stopping pipeline: %v", err)
			cancelInputs()
			<-inputsDone
			q.Close()
			return err
		}
	}
}
