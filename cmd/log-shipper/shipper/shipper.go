package shipper

import (
	"context"
	"sync"
	"syscall"

	"xaas-logging.log-shipper/pkg/cli"
	log "xaas-logging.log-shipper/pkg/logging"
	"xaas-logging.log-shipper/pkg/monitoring"
	"xaas-logging.log-shipper/pkg/pipeline"
	"xaas-logging.log-shipper/pkg/sys"
)

// createPipeline() loads the yaml config and builds every pipeline component
func createPipeline() *pipeline.Pipeline {
	log.Debugf("%+v", cli.Args)

	cfg, err := pipeline.LoadConfigFromFile(cli.Args.Config)
	if err != nil {
		log.Fatalf("%v", err)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return p
}

/*
 * Run() is the entry point for execution of log-shipper.
 * If using as a library, call shipper.Run()
 */
func Run(wg *sync.WaitGroup) {
	defer wg.Done()

	// Initialize logging and monitoring
	// Monitoring is enabled by default when deployed in k8s, and disabled by default when run locally
	// To force enabling of monitoring, create env var SHIPPER_ENABLE_MONITORING
	log.Setup()
	monitoring.Start()

	// Setup signaling to capture program kill events and allow for graceful shutdown
	signal := sys.NewSignal(syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop()

	// context with cancel for graceful shutdown
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	p := createPipeline()

	go func() {
		sig := signal.ReceiveShutDown() // blocks until shutdown signal
		log.Infof("GRACEFUL SHUTDOWN STARTED [ log-shipper ] on %v....", sig)
		cancelFunc() // Signal cancellation to context.Context
	}()

	// Sink failures are fatal: exit non-zero rather than silently dropping records
	if err := p.Run(ctx); err != nil {
		log.Fatalf("log-shipper stopped: %v", err)
	}
	log.Infof("GRACEFUL SHUTDOWN COMPLETE [ log-shipper ]")
}
