package stdout

import (
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/mergers"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/queue"
	t "xaas-logging.log-shipper/pkg/types"
	"xaas-logging.log-shipper/pkg/workerpool"
)

const sinkLabel = "stdout"

// Output writes framed records to standard output. Handy for debugging a pipeline config.
type Output struct {
	mu   sync.Mutex
	w    io.Writer
	pool *workerpool.WorkerPool
}

// NewOutput() takes no configuration
func NewOutput(_ *yaml.Node) (t.Output, error) {
	return NewOutputWithWriter(os.Stdout), nil
}

func NewOutputWithWriter(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) Start(q *queue.Queue, merger t.Merger, fatal t.FatalFunc) error {
	if merger == nil {
		merger = mergers.NewLineMerger()
	}

	o.pool = workerpool.NewWorkerPool("stdout-output", 1, func(nbr int) {
		for {
			data, ok := q.Pop()
			if !ok {
				return
			}

			o.mu.Lock()
			_, err := o.w.Write(merger.Frame(data))
			o.mu.Unlock()

			if err != nil {
				log.Errorf("failed to write to stdout: %v", err)
				monitoring.IncCounter(monitoring.Errors, monitoring.PROM_LABEL_COMPONENT_OUTPUT, monitoring.PROM_STAGE_DELIVER, sinkLabel)
				fatal(err)
				return
			}
			monitoring.IncCounter(monitoring.RecordsDeliveredCounter, sinkLabel)
		}
	})
	o.pool.Start()
	return nil
}

func (o *Output) Wait() {
	if o.pool != nil {
		o.pool.Wait()
	}
}
