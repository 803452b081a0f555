package cli

import "fmt"

type args struct {
	LoggingToFileEnabled bool   `arg:"env:SHIPPER_ENABLE_LOGGING_TO_FILE,-l,--logToFile" default:"false" help:"Enable logging to file"`
	LogfilePath          string `arg:"env:SHIPPER_LOGFILE_PATH,-f,--logfilePath" default:"logs/log-shipper.log" help:"Location and name of file to log to"`
	DebugEnabled         bool   `arg:"env:SHIPPER_ENABLE_DEBUG_LOGGING,-d,--debug" help:"Specify this flag to enable debug logging level"`
	Config               string `arg:"env:SHIPPER_CONFIG,-c,--config" default:"configs/log-shipper.yaml" help:"Path to the log shipper yaml config file"`

	Port int `arg:"env:SHIPPER_PORT,-p,--port" default:"8078" help:"Port to expose /metrics and /ping on when monitoring is enabled"`
}

// go-args library supports a Description() method on the struct to print out a description of the command
func (args) Description() string {
	description := `
#########################################################################################################
log-shipper tails log files, parses each line into a structured record, re-encodes it and
delivers it to a sink (kafka, redis, fluentd, file or stdout).

	e.g. SHIPPER_CONFIG=configs/log-shipper.yaml ./log-shipper

Set SHIPPER_ENABLE_MONITORING to expose prometheus metrics on --port when not running in kubernetes.
#########################################################################################################
`

	return fmt.Sprint(description)
}

// Export Args
var Args args
