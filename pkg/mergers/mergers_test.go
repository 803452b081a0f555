package mergers_test

import (
	"bytes"
	"testing"

	"xaas-logging.log-shipper/pkg/mergers"
)

func TestMergerFrames(t *testing.T) {
	cases := map[string]string{
		"line":   "{\"a\":1}\n",
		"nul":    "{\"a\":1}\x00",
		"syslen": "7 {\"a\":1}",
	}

	for name, expected := range cases {
		merger, err := mergers.CreateMerger(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		in := []byte(`{"a":1}`)
		out := merger.Frame(in)
		if !bytes.Equal(out, []byte(expected)) {
			t.Errorf("%s: expected %q, got %q", name, expected, out)
		}
		if string(in) != `{"a":1}` {
			t.Errorf("%s: input was modified: %q", name, in)
		}
	}
}

func TestNoopMerger(t *testing.T) {
	for _, name := range []string{"", "noop"} {
		merger, err := mergers.CreateMerger(name)
		if err != nil || merger != nil {
			t.Errorf("%q: expected nil merger, got %v (%v)", name, merger, err)
		}
	}
}

func TestUnknownMerger(t *testing.T) {
	if _, err := mergers.CreateMerger("capnp"); err == nil {
		t.Fatal("expected error for unknown merger")
	}
}
