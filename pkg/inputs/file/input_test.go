package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
	"xaas-logging.log-shipper/pkg/decoders"
	"xaas-logging.log-shipper/pkg/encoders"
	"xaas-logging.log-shipper/pkg/inputs/file"
	"xaas-logging.log-shipper/pkg/queue"
	"xaas-logging.log-shipper/pkg/types"
)

const waitTimeout = 5 * time.Second

func configNode(t *testing.T, src string, fromTail bool) *yaml.Node {
	var node yaml.Node
	cfg := map[string]interface{}{
		"src":               src,
		"from_tail":         fromTail,
		"watch_interval_ms": 20,
	}
	if err := node.Encode(cfg); err != nil {
		t.Fatal(err)
	}
	return &node
}

func appendTo(t *testing.T, path string, data string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatal(err)
	}
}

// startInput tails src and returns the queue it feeds. The input is stopped when the test ends.
func startInput(t *testing.T, src string, fromTail bool) (*queue.Queue, types.Input, context.CancelFunc) {
	q := queue.New(100)
	input, cancel := startInputWithQueue(t, src, fromTail, q)
	return q, input, cancel
}

func startInputWithQueue(t *testing.T, src string, fromTail bool, q *queue.Queue) (types.Input, context.CancelFunc) {
	input, err := file.NewInput(configNode(t, src, fromTail))
	if err != nil {
		t.Fatalf("failed to create file input: %v", err)
	}
	decoder, _ := decoders.CreateDecoder("json")
	encoder, _ := encoders.CreateEncoder("json")

	ctx, cancel := context.WithCancel(context.Background())
	if err := input.Start(ctx, q, decoder, encoder); err != nil {
		cancel()
		t.Fatalf("failed to start file input: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		input.Wait()
	})
	return input, cancel
}

// waitDone closes the returned channel once every worker of input has exited
func waitDone(input types.Input) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		input.Wait()
		close(done)
	}()
	return done
}

// expectMessage pops the next record and checks its message field
func expectMessage(t *testing.T, q *queue.Queue, expected string) {
	t.Helper()

	got := make(chan []byte, 1)
	go func() {
		data, _ := q.Pop()
		got <- data
	}()

	select {
	case data := <-got:
		decoder, _ := decoders.CreateDecoder("json")
		record, err := decoder.Decode(string(data))
		if err != nil {
			t.Fatalf("queued record is not valid json: %v", err)
		}
		if record.Msg == nil || *record.Msg != expected {
			t.Fatalf("expected message %q, got %v", expected, record.Msg)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", expected)
	}
}

func TestMissingSrc(t *testing.T) {
	var node yaml.Node
	_ = node.Encode(map[string]interface{}{"from_tail": true})
	if _, err := file.NewInput(&node); err != file.ErrMissingSrc {
		t.Fatalf("expected ErrMissingSrc, got %v", err)
	}
}

func TestReadsExistingAndAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "{\"message\":\"one\"}\n{\"message\":\"two\"}\n{\"message\":\"three\"}\n")

	q, _, _ := startInput(t, path, false)

	expectMessage(t, q, "one")
	expectMessage(t, q, "two")
	expectMessage(t, q, "three")

	appendTo(t, path, "{\"message\":\"four\"}\n{\"message\":\"five\"}\n")
	expectMessage(t, q, "four")
	expectMessage(t, q, "five")
}

func TestFromTailSkipsExistingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "{\"message\":\"old\"}\n{\"message\":\"older\"}\n")

	q, _, _ := startInput(t, path, true)

	// give the worker time to register its watch
	time.Sleep(100 * time.Millisecond)
	appendTo(t, path, "{\"message\":\"new\"}\n")

	expectMessage(t, q, "new")
	if q.Len() != 0 {
		t.Errorf("expected an empty queue, got %d records", q.Len())
	}
}

func TestPartialLineWaitsForTerminator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "")

	q, _, _ := startInput(t, path, false)

	time.Sleep(100 * time.Millisecond)
	appendTo(t, path, `{"message":"par`)
	time.Sleep(200 * time.Millisecond)
	if q.Len() != 0 {
		t.Fatalf("partial line must not be queued, got %d records", q.Len())
	}

	appendTo(t, path, "tial\"}\n")
	expectMessage(t, q, "partial")
}

func TestMalformedLineIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "not json\n{\"level\":9}\n{\"message\":\"ok\"}\n")

	q, _, _ := startInput(t, path, false)

	expectMessage(t, q, "ok")
	if q.Len() != 0 {
		t.Errorf("expected an empty queue, got %d records", q.Len())
	}
}

func TestTruncationRestartsFromBeginning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "{\"message\":\"a long first line\"}\n{\"message\":\"a long second line\"}\n")

	q, _, _ := startInput(t, path, false)
	expectMessage(t, q, "a long first line")
	expectMessage(t, q, "a long second line")

	if err := os.WriteFile(path, []byte("{\"message\":\"x\"}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	expectMessage(t, q, "x")
}

func TestRemovedFileStopsWorker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "")

	_, input, _ := startInput(t, path, false)

	time.Sleep(100 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-waitDone(input):
	case <-time.After(waitTimeout):
		t.Fatal("worker kept running after its file was removed")
	}
}

func TestGlobWithoutMatchesIsNotAnError(t *testing.T) {
	src := filepath.Join(t.TempDir(), "*.log")
	_, input, _ := startInput(t, src, false)
	input.Wait()
}

func TestRemovedFileLeavesOtherWorkersRunning(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "a.log")
	kept := filepath.Join(dir, "b.log")
	appendTo(t, gone, "")
	appendTo(t, kept, "")

	q, input, _ := startInput(t, filepath.Join(dir, "*.log"), false)

	time.Sleep(100 * time.Millisecond)
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	appendTo(t, kept, "{\"message\":\"still here\"}\n")
	expectMessage(t, q, "still here")

	select {
	case <-waitDone(input):
		t.Fatal("input stopped although one of its files is still present")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFullQueueBlocksWorker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "")

	q := queue.New(1)
	input, _ := startInputWithQueue(t, path, false, q)

	time.Sleep(100 * time.Millisecond)
	appendTo(t, path, "{\"message\":\"one\"}\n{\"message\":\"two\"}\n{\"message\":\"three\"}\n{\"message\":\"four\"}\n")

	deadline := time.Now().Add(waitTimeout)
	for q.Len() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the queue to fill")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	if q.Len() != 1 {
		t.Fatalf("expected the queue to hold 1 record, got %d", q.Len())
	}

	done := waitDone(input)
	select {
	case <-done:
		t.Fatal("worker exited while blocked on a full queue")
	default:
	}

	expectMessage(t, q, "one")
	expectMessage(t, q, "two")
	expectMessage(t, q, "three")
	expectMessage(t, q, "four")

	select {
	case <-done:
		t.Fatal("worker exited after the queue drained")
	default:
	}
}
