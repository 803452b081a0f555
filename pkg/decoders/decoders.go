package decoders

import (
	"fmt"
	"sort"
	"strings"

	log "xaas-logging.log-shipper/pkg/logging"
	t "xaas-logging.log-shipper/pkg/types"
)

func init() {
	Register("json", NewJSONDecoder)
}

var decoderFactories = make(map[string]t.DecoderFactory)

// Each decoder implementation must Register itself
func Register(name string, factory t.DecoderFactory) {
	log.Debugf("Registering decoder factory for %s", name)
	if factory == nil {
		log.Panicf("Decoder factory %s does not exist.", name)
	}
	_, registered := decoderFactories[name]
	if registered {
		log.Infof("Decoder factory %s already registered. Ignoring.", name)
		return
	}
	decoderFactories[name] = factory
}

// CreateDecoder is a factory method that will create the named decoder
func CreateDecoder(name string) (t.Decoder, error) {
	factory, ok := decoderFactories[name]
	if !ok {
		availableDecoders := make([]string, 0, len(decoderFactories))
		for k := range decoderFactories {
			availableDecoders = append(availableDecoders, k)
		}
		sort.Strings(availableDecoders)
		return nil, fmt.Errorf("invalid decoder name. must be one of: %s", strings.Join(availableDecoders, ", "))
	}
	return factory(), nil
}
