package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
	"xaas-logging.log-shipper/pkg/mergers"
	"xaas-logging.log-shipper/pkg/outputs/file"
	"xaas-logging.log-shipper/pkg/queue"
)

func run(t *testing.T, path string, framing string, records ...string) string {
	var node yaml.Node
	if err := node.Encode(map[string]interface{}{"path": path}); err != nil {
		t.Fatal(err)
	}
	output, err := file.NewOutput(&node)
	if err != nil {
		t.Fatal(err)
	}
	merger, err := mergers.CreateMerger(framing)
	if err != nil {
		t.Fatal(err)
	}

	q := queue.New(10)
	for _, r := range records {
		_ = q.Push(context.Background(), []byte(r))
	}
	q.Close()

	if err := output.Start(q, merger, func(err error) { t.Errorf("unexpected fatal error: %v", err) }); err != nil {
		t.Fatal(err)
	}
	output.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDefaultsToLineFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	got := run(t, path, "", `{"a":1}`, `{"b":2}`)
	if got != "{\"a\":1}\n{\"b\":2}\n" {
		t.Errorf("unexpected file content %q", got)
	}
}

func TestConfiguredFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	got := run(t, path, "syslen", `{"a":1}`)
	if got != `7 {"a":1}` {
		t.Errorf("unexpected file content %q", got)
	}
}

func TestMissingPath(t *testing.T) {
	if _, err := file.NewOutput(nil); err != file.ErrMissingPath {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
}
