package outputs

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/outputs/file"
	"xaas-logging.log-shipper/pkg/outputs/fluentd"
	"xaas-logging.log-shipper/pkg/outputs/kafka"
	"xaas-logging.log-shipper/pkg/outputs/redis"
	"xaas-logging.log-shipper/pkg/outputs/stdout"
	t "xaas-logging.log-shipper/pkg/types"
)

func init() {
	Register("kafka", kafka.NewOutput)
	Register("redis", redis.NewOutput)
	Register("fluentd", fluentd.NewOutput)
	Register("file", file.NewOutput)
	Register("stdout", stdout.NewOutput)
}

var outputFactories = make(map[string]t.OutputFactory)

// Each output implementation must Register itself
func Register(name string, factory t.OutputFactory) {
	log.Debugf("Registering output factory for %s", name)
	if factory == nil {
		log.Panicf("Output factory %s does not exist.", name)
	}
	_, registered := outputFactories[name]
	if registered {
		log.Infof("Output factory %s already registered. Ignoring.", name)
		return
	}
	outputFactories[name] = factory
}

// CreateOutput is a factory method that will create the named output from its yaml config section
func CreateOutput(name string, config *yaml.Node) (t.Output, error) {
	factory, ok := outputFactories[name]
	if !ok {
		availableOutputs := make([]string, 0, len(outputFactories))
		for k := range outputFactories {
			availableOutputs = append(availableOutputs, k)
		}
		sort.Strings(availableOutputs)
		return nil, fmt.Errorf("invalid output name. must be one of: %s", strings.Join(availableOutputs, ", "))
	}
	return factory(config)
}
