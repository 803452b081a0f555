package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"xaas-logging.log-shipper/pkg/decoders"
	"xaas-logging.log-shipper/pkg/encoders"
	"xaas-logging.log-shipper/pkg/inputs"
	"xaas-logging.log-shipper/pkg/pipeline"
	"xaas-logging.log-shipper/pkg/queue"
	"xaas-logging.log-shipper/pkg/types"
)

// syncBuffer is a goroutine safe bytes.Buffer
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// collectOutput records every queued item, or fails every item when err is set
type collectOutput struct {
	err  error
	out  *syncBuffer
	done sync.WaitGroup
}

func (c *collectOutput) Start(q *queue.Queue, merger types.Merger, fatal types.FatalFunc) error {
	c.done.Add(1)
	go func() {
		defer c.done.Done()
		for {
			data, ok := q.Pop()
			if !ok {
				return
			}
			if c.err != nil {
				fatal(c.err)
				return
			}
			_, _ = c.out.Write(append(data, '\n'))
		}
	}()
	return nil
}

func (c *collectOutput) Wait() {
	c.done.Wait()
}

func TestLoadConfig(t *testing.T) {
	yml := pipeline.DefaultShipperYaml
	content := `
queue_size: 50
input:
  type: file
  format: json
  config:
    src: /var/log/app/*.log
    from_tail: true
output:
  type: kafka
  format: msgpack
  framing: line
  config:
    brokers: ["localhost:9092"]
    topic: logs
`
	if err := pipeline.LoadConfig([]byte(content), &yml); err != nil {
		t.Fatal(err)
	}
	if yml.QueueSize != 50 || yml.Input.Type != "file" || yml.Output.Format != "msgpack" || yml.Output.Framing != "line" {
		t.Errorf("unexpected config %+v", yml)
	}
	if yml.Input.Config.IsZero() || yml.Output.Config.IsZero() {
		t.Error("component config sections were not captured")
	}

	if _, err := pipeline.New(&yml); err != nil {
		t.Errorf("unexpected error building pipeline: %v", err)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	yml, err := pipeline.LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if yml.QueueSize != queue.DefaultSize || yml.Input.Type != "file" || yml.Output.Type != "kafka" {
		t.Errorf("unexpected defaults %+v", yml)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"unknown format":  "input: {type: file, format: xml, config: {src: a.log}}\noutput: {type: stdout, format: json}",
		"unknown framing": "input: {type: file, format: json, config: {src: a.log}}\noutput: {type: stdout, format: json, framing: crlf}",
		"unknown output":  "input: {type: file, format: json, config: {src: a.log}}\noutput: {type: s3, format: json}",
		"missing topic":   "input: {type: file, format: json, config: {src: a.log}}\noutput: {type: kafka, format: json, config: {brokers: ['b:9092']}}",
		"missing src":     "input: {type: file, format: json}\noutput: {type: stdout, format: json}",
	}
	for name, content := range cases {
		yml := pipeline.DefaultShipperYaml
		if err := pipeline.LoadConfig([]byte(content), &yml); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, err := pipeline.New(&yml); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func newPipeline(t *testing.T, path string, output types.Output) *pipeline.Pipeline {
	yml := pipeline.DefaultShipperYaml
	content := "input: {type: file, format: json, config: {src: '" + path + "', watch_interval_ms: 20}}"
	if err := pipeline.LoadConfig([]byte(content), &yml); err != nil {
		t.Fatal(err)
	}
	input, err := inputs.CreateInput("file", &yml.Input.Config)
	if err != nil {
		t.Fatal(err)
	}
	decoder, _ := decoders.CreateDecoder("json")
	encoder, _ := encoders.CreateEncoder("json")
	return pipeline.NewWithComponents(10, decoder, encoder, nil, input, output)
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunShipsLinesAndStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("{\"message\":\"one\"}\n{\"message\":\"two\"}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out := &syncBuffer{}
	p := newPipeline(t, path, &collectOutput{out: out})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- p.Run(ctx) }()

	waitFor(t, func() bool { return strings.Count(out.String(), "\n") == 2 })
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("expected an orderly shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !strings.Contains(lines[0], `"message":"one"`) || !strings.Contains(lines[1], `"message":"two"`) {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunReturnsFatalOutputError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("{\"message\":\"one\"}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	sinkErr := errors.New("broker unreachable")
	p := newPipeline(t, path, &collectOutput{out: &syncBuffer{}, err: sinkErr})

	result := make(chan error, 1)
	go func() { result <- p.Run(context.Background()) }()

	select {
	case err := <-result:
		if !errors.Is(err, sinkErr) {
			t.Fatalf("expected the sink error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop on a fatal error")
	}
}
