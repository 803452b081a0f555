package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/queue"
)

var (
	// Default pipeline config: tail json lines and ship them as json to kafka
	DefaultShipperYaml = ShipperYaml{
		QueueSize: queue.DefaultSize,
		Input: InputParams{
			Type:   "file",
			Format: "json",
		},
		Output: OutputParams{
			Type:   "kafka",
			Format: "json",
		},
	}
)

// The following structs represent the log shipper yaml configuration structure. Component specific
// settings stay as raw yaml and are decoded by the component factory.
type ShipperYaml struct {
	QueueSize int          `json:"queue_size" yaml:"queue_size"`
	Input     InputParams  `json:"input" yaml:"input"`
	Output    OutputParams `json:"output" yaml:"output"`
}

type InputParams struct {
	Type   string    `json:"type" yaml:"type"`
	Format string    `json:"format" yaml:"format"`
	Config yaml.Node `json:"-" yaml:"config"`
}

type OutputParams struct {
	Type    string    `json:"type" yaml:"type"`
	Format  string    `json:"format" yaml:"format"`
	Framing string    `json:"framing" yaml:"framing"`
	Config  yaml.Node `json:"-" yaml:"config"`
}

// LoadConfigFromFile() loads the shipper yaml config from file. A missing file leaves the defaults.
func LoadConfigFromFile(configFile string) (*ShipperYaml, error) {
	// Start with defaults
	yml := DefaultShipperYaml

	// Read config file content
	file, err := os.ReadFile(filepath.Clean(configFile))
	if err == nil {
		if err = LoadConfig(file, &yml); err != nil {
			return nil, err
		}
	} else {
		log.Warnf("unable to read config file %s, using defaults: %v", configFile, err)
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(yml))
	log.Debugf("%v", string(raw))

	return &yml, nil
}

// LoadConfig() unmarshals yaml content on top of yml
func LoadConfig(content []byte, yml *ShipperYaml) error {
	return yaml.Unmarshal(content, yml)
}
