package inputs

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"xaas-logging.log-shipper/pkg/inputs/file"
	log "xaas-logging.log-shipper/pkg/logging"
	t "xaas-logging.log-shipper/pkg/types"
)

func init() {
	Register("file", file.NewInput)
}

var inputFactories = make(map[string]t.InputFactory)

// Each input implementation must Register itself
func Register(name string, factory t.InputFactory) {
	log.Debugf("Registering input factory for %s", name)
	if factory == nil {
		log.Panicf("Input factory %s does not exist.", name)
	}
	_, registered := inputFactories[name]
	if registered {
		log.Infof("Input factory %s already registered. Ignoring.", name)
		return
	}
	inputFactories[name] = factory
}

// CreateInput is a factory method that will create the named input from its yaml config section
func CreateInput(name string, config *yaml.Node) (t.Input, error) {
	factory, ok := inputFactories[name]
	if !ok {
		availableInputs := make([]string, 0, len(inputFactories))
		for k := range inputFactories {
			availableInputs = append(availableInputs, k)
		}
		sort.Strings(availableInputs)
		return nil, fmt.Errorf("invalid input name. must be one of: %s", strings.Join(availableInputs, ", "))
	}
	return factory(config)
}
