package encoders

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	log "xaas-logging.log-shipper/pkg/logging"
	t "xaas-logging.log-shipper/pkg/types"
)

func init() {
	Register("json", NewJSONEncoder)
	Register("msgpack", NewMsgpackEncoder)
}

// ErrNonFiniteNumber is returned for NaN or infinite floats which have no JSON representation
var ErrNonFiniteNumber = errors.New("cannot encode a non-finite number")

// ErrDuplicateField is returned when two structured data pairs share a name, e.g. "a" and "_a"
var ErrDuplicateField = errors.New("duplicate structured data field")

// uniqueNames() rejects records whose structured data would collapse onto one key
func uniqueNames(record t.Record) error {
	if record.StructuredData == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(record.StructuredData.Pairs))
	for _, pair := range record.StructuredData.Pairs {
		if _, ok := seen[pair.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateField, pair.Name)
		}
		seen[pair.Name] = struct{}{}
	}
	return nil
}

var encoderFactories = make(map[string]t.EncoderFactory)

// Each encoder implementation must Register itself
func Register(name string, factory t.EncoderFactory) {
	log.Debugf("Registering encoder factory for %s", name)
	if factory == nil {
		log.Panicf("Encoder factory %s does not exist.", name)
	}
	_, registered := encoderFactories[name]
	if registered {
		log.Infof("Encoder factory %s already registered. Ignoring.", name)
		return
	}
	encoderFactories[name] = factory
}

// CreateEncoder is a factory method that will create the named encoder
func CreateEncoder(name string) (t.Encoder, error) {
	factory, ok := encoderFactories[name]
	if !ok {
		availableEncoders := make([]string, 0, len(encoderFactories))
		for k := range encoderFactories {
			availableEncoders = append(availableEncoders, k)
		}
		sort.Strings(availableEncoders)
		return nil, fmt.Errorf("invalid encoder name. must be one of: %s", strings.Join(availableEncoders, ", "))
	}
	return factory(), nil
}
