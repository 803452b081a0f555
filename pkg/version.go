package pkg

// version is overridden at build time with -ldflags "-X xaas-logging.log-shipper/pkg.version=..."
var version = "0.1.0"

func GetVersion() string {
	return version
}
