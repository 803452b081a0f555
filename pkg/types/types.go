package types

import (
	"context"

	"gopkg.in/yaml.v3"
	"xaas-logging.log-shipper/pkg/queue"
)

// Decoder parses one raw input line into a Record. Implementations hold only static
// configuration and must be safe for concurrent use by many input workers.
type Decoder interface {
	Decode(line string) (Record, error)
}

// Encoder serializes a full Record into an output wire representation. Implementations
// must be safe for concurrent use.
type Encoder interface {
	Encode(record Record) ([]byte, error)
}

// Merger frames encoded records for byte-stream sinks
type Merger interface {
	Frame(data []byte) []byte
}

// FatalFunc receives sink errors that must stop the whole pipeline
type FatalFunc func(error)

// Input owns one or more sources and pushes encoded records onto the queue
type Input interface {
	// Start spawns the input workers. Errors opening sources are returned here.
	Start(ctx context.Context, q *queue.Queue, decoder Decoder, encoder Encoder) error
	// Wait blocks until every worker has exited
	Wait()
}

// Output drains the queue into a sink
type Output interface {
	// Start connects to the sink and spawns the delivery workers. Delivery errors are
	// reported to fatal and never retried.
	Start(q *queue.Queue, merger Merger, fatal FatalFunc) error
	// Wait blocks until every worker has observed end-of-stream
	Wait()
}

// Factory method definitions. config is the component's own section of the pipeline yaml
// and may be empty.
type InputFactory func(config *yaml.Node) (Input, error)
type OutputFactory func(config *yaml.Node) (Output, error)
type DecoderFactory func() Decoder
type EncoderFactory func() Encoder
type MergerFactory func() Merger
