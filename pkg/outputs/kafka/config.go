package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IBM/sarama"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAcks      = 0
	DefaultTimeoutMs = 60000
	DefaultThreads   = 1
	DefaultCoalesce  = 1

	kafkaVersion = "2.8.1"
	clientID     = "log-shipper"

	// extra read time so the broker's own ack timeout is reported before the socket gives up
	readTimeoutSlack = time.Second
)

var (
	ErrMissingBrokers     = errors.New("kafka output requires at least one broker")
	ErrMissingTopic       = errors.New("kafka output requires a topic")
	ErrInvalidAcks        = errors.New("invalid value for kafka acks, must be -1, 0 or 1")
	ErrInvalidCompression = errors.New("invalid kafka compression, must be one of: none, gzip, snappy")
)

// Config is the yaml config section of the kafka output
type Config struct {
	Brokers       []string `json:"brokers" yaml:"brokers"`
	Topic         string   `json:"topic" yaml:"topic"`
	Acks          int      `json:"acks" yaml:"acks"`
	TimeoutMs     int      `json:"timeout" yaml:"timeout"`
	Threads       int      `json:"threads" yaml:"threads"`
	Coalesce      int      `json:"coalesce" yaml:"coalesce"`
	Compression   string   `json:"compression" yaml:"compression"`
	TLSCertPath   string   `json:"tls_cert_path" yaml:"tls_cert_path"`
	TLSKeyPath    string   `json:"tls_key_path" yaml:"tls_key_path"`
	TLSCACertPath string   `json:"tls_ca_cert_path" yaml:"tls_ca_cert_path"`
	TLSHostVerify bool     `json:"tls_host_verify" yaml:"tls_host_verify"`
}

func DefaultConfig() Config {
	return Config{
		Acks:          DefaultAcks,
		TimeoutMs:     DefaultTimeoutMs,
		Threads:       DefaultThreads,
		Coalesce:      DefaultCoalesce,
		Compression:   "none",
		TLSHostVerify: true,
	}
}

// ParseConfig() decodes the config section on top of the defaults and validates it
func ParseConfig(node *yaml.Node) (Config, error) {
	cfg := DefaultConfig()
	if node != nil && !node.IsZero() {
		if err := node.Decode(&cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrMissingBrokers
	}
	if c.Topic == "" {
		return ErrMissingTopic
	}
	if _, err := requiredAcks(c.Acks); err != nil {
		return err
	}
	if _, err := compressionCodec(c.Compression); err != nil {
		return err
	}
	return nil
}

func (c Config) tlsEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

func requiredAcks(acks int) (sarama.RequiredAcks, error) {
	switch acks {
	case -1:
		return sarama.WaitForAll, nil
	case 0:
		return sarama.NoResponse, nil
	case 1:
		return sarama.WaitForLocal, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidAcks, acks)
	}
}

func compressionCodec(name string) (sarama.CompressionCodec, error) {
	switch name {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	default:
		return sarama.CompressionNone, fmt.Errorf("%w: %q", ErrInvalidCompression, name)
	}
}

// NewSaramaConfig() translates the output config into a sync producer config
func NewSaramaConfig(c Config) (*sarama.Config, error) {
	acks, err := requiredAcks(c.Acks)
	if err != nil {
		return nil, err
	}
	codec, err := compressionCodec(c.Compression)
	if err != nil {
		return nil, err
	}

	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Version, _ = sarama.ParseKafkaVersion(kafkaVersion)
	config.Producer.RequiredAcks = acks
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	config.Producer.Timeout = timeout
	config.Net.WriteTimeout = timeout
	config.Net.ReadTimeout = timeout + readTimeoutSlack
	config.Producer.Compression = codec
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	// failures are fatal, the producer must not retry behind our back
	config.Producer.Retry.Max = 0

	if c.tlsEnabled() {
		tlsConfig, err := NewTLSConfig(c)
		if err != nil {
			return nil, err
		}
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewTLSConfig() loads the client certificate pair and the optional CA bundle. Without a CA bundle
// the system roots are used. Disabling host verification still verifies the certificate chain.
func NewTLSConfig(c Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Clean(c.TLSCertPath), filepath.Clean(c.TLSKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load kafka client certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if c.TLSCACertPath != "" {
		pem, err := os.ReadFile(filepath.Clean(c.TLSCACertPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read kafka CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificate found in %s", c.TLSCACertPath)
		}
		tlsConfig.RootCAs = pool
	}

	if !c.TLSHostVerify {
		tlsConfig.InsecureSkipVerify = true // #nosec G402 chain is still verified below
		tlsConfig.VerifyPeerCertificate = verifyChain(tlsConfig.RootCAs)
	}
	return tlsConfig, nil
}

// verifyChain() verifies the peer chain against roots while ignoring the server name
func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("kafka broker presented no certificate")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs = append(certs, cert)
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}
