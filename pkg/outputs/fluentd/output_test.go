package fluentd_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"xaas-logging.log-shipper/pkg/outputs/fluentd"
	"xaas-logging.log-shipper/pkg/queue"
)

type forwarded struct {
	tag    string
	record map[string]interface{}
}

// listenForward accepts one connection and decodes forward-mode messages from it
func listenForward(t *testing.T) (string, <-chan forwarded) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })

	out := make(chan forwarded, 10)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		dec := msgpack.NewDecoder(conn)
		for {
			n, err := dec.DecodeArrayLen()
			if err != nil || n < 3 {
				return
			}
			tag, err := dec.DecodeString()
			if err != nil {
				return
			}
			// event time
			if err := dec.Skip(); err != nil {
				return
			}
			record, err := dec.DecodeMap()
			if err != nil {
				return
			}
			for i := 3; i < n; i++ {
				if err := dec.Skip(); err != nil {
					return
				}
			}
			out <- forwarded{tag: tag, record: record}
		}
	}()
	return l.Addr().String(), out
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := fluentd.ParseConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Address != fluentd.DefaultAddress || cfg.Tag != fluentd.DefaultTag || cfg.Threads != 1 || cfg.Buffered {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestForward(t *testing.T) {
	addr, received := listenForward(t)

	cfg, _ := fluentd.ParseConfig(nil)
	cfg.Address = addr
	cfg.Tag = "app.logs"

	output, err := fluentd.NewOutputWithConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}

	q := queue.New(10)
	_ = q.Push(context.Background(), []byte(`{"message":"hello"}`))
	q.Close()

	var fatalErr error
	if err := output.Start(q, nil, func(err error) { fatalErr = err }); err != nil {
		t.Fatal(err)
	}
	output.Wait()
	if fatalErr != nil {
		t.Fatalf("unexpected fatal error: %v", fatalErr)
	}

	select {
	case msg := <-received:
		if msg.tag != "app.logs" {
			t.Errorf("expected tag app.logs, got %v", msg.tag)
		}
		if msg.record["message"] != `{"message":"hello"}` {
			t.Errorf("unexpected record %v", msg.record)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the forwarded record")
	}
}
