package mergers

import (
	"fmt"
	"sort"
	"strings"

	log "xaas-logging.log-shipper/pkg/logging"
	t "xaas-logging.log-shipper/pkg/types"
)

func init() {
	Register("line", NewLineMerger)
	Register("nul", NewNulMerger)
	Register("syslen", NewSyslenMerger)
}

var mergerFactories = make(map[string]t.MergerFactory)

// Each merger implementation must Register itself
func Register(name string, factory t.MergerFactory) {
	log.Debugf("Registering merger factory for %s", name)
	if factory == nil {
		log.Panicf("Merger factory %s does not exist.", name)
	}
	_, registered := mergerFactories[name]
	if registered {
		log.Infof("Merger factory %s already registered. Ignoring.", name)
		return
	}
	mergerFactories[name] = factory
}

// CreateMerger is a factory method that will create the named merger. An empty name or "noop"
// means records are sent unframed and yields a nil merger.
func CreateMerger(name string) (t.Merger, error) {
	if name == "" || name == "noop" {
		return nil, nil
	}
	factory, ok := mergerFactories[name]
	if !ok {
		availableMergers := []string{"noop"}
		for k := range mergerFactories {
			availableMergers = append(availableMergers, k)
		}
		sort.Strings(availableMergers)
		return nil, fmt.Errorf("invalid merger name. must be one of: %s", strings.Join(availableMergers, ", "))
	}
	return factory(), nil
}

// LineMerger terminates every record with a line feed
type LineMerger struct{}

func NewLineMerger() t.Merger { return LineMerger{} }

func (LineMerger) Frame(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, data...)
	return append(out, '\n')
}

// NulMerger terminates every record with a NUL byte
type NulMerger struct{}

func NewNulMerger() t.Merger { return NulMerger{} }

func (NulMerger) Frame(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, data...)
	return append(out, 0)
}

// SyslenMerger prefixes every record with its length and a space (octet counting)
type SyslenMerger struct{}

func NewSyslenMerger() t.Merger { return SyslenMerger{} }

func (SyslenMerger) Frame(data []byte) []byte {
	prefix := fmt.Sprintf("%d ", len(data))
	out := make([]byte, 0, len(prefix)+len(data))
	out = append(out, prefix...)
	return append(out, data...)
}
