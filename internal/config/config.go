// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON file and environment
// variables. Environment variables win over the file, the file wins over flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

// DefaultUpstreamURL is the registry API the proxy talks to.
const DefaultUpstreamURL = "https://hub.docker.com"

// ErrMissingSecret is returned when no envelope secret was configured.
var ErrMissingSecret = errors.New("PRIVATE_SECRET_KEY is not configured")

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// UpstreamURL is the base URL of the registry API.
	UpstreamURL string `json:"upstream_url"`

	// SecretKey encrypts account bundles handed to clients.
	SecretKey string `json:"secret_key"`

	// TLSCert and TLSKey point at the server certificate pair.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	LogLevel string `json:"log_level"`

	// AuthScheme prefixes upstream tokens in the Authorization header.
	AuthScheme string `json:"auth_scheme"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8443", "run on ip:port server")
	flag.StringVar(&options.UpstreamURL, "u", DefaultUpstreamURL, "upstream registry API")
	flag.StringVar(&options.SecretKey, "s", "", "secret used to encrypt account bundles")
	flag.StringVar(&options.TLSCert, "cert", "certs/server.crt", "TLS certificate file")
	flag.StringVar(&options.TLSKey, "key", "certs/server.key", "TLS private key file")
	flag.StringVar(&options.LogLevel, "l", "info", "log level")
	flag.StringVar(&options.AuthScheme, "scheme", "Bearer", "authorization scheme for upstream tokens")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the optional config file and the
// environment. It exits the process when the file is unreadable or the
// secret is missing.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if err := options.loadFile(); err != nil {
		log.Fatal(err)
	}
	options.applyEnv(os.Getenv)

	if err := options.Validate(); err != nil {
		log.Fatal(err)
	}
	return options
}

// loadFile overlays the JSON config file when it exists.
func (o *Options) loadFile() error {
	if o.Config == "" {
		return nil
	}
	if _, err := os.Stat(o.Config); err != nil {
		return nil
	}
	data, err := os.ReadFile(o.Config)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func (o *Options) applyEnv(getenv func(string) string) {
	if v := getenv("SERVER_ADDRESS"); v != "" {
		o.Port = v
	}
	if v := getenv("UPSTREAM_URL"); v != "" {
		o.UpstreamURL = v
	}
	if v := getenv("PRIVATE_SECRET_KEY"); v != "" {
		o.SecretKey = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		o.LogLevel = v
	}
	if v := getenv("AUTH_SCHEME"); v != "" {
		o.AuthScheme = v
	}
}

// Validate checks the options the server cannot start without.
func (o *Options) Validate() error {
	if o.SecretKey == "" {
		return ErrMissingSecret
	}
	o.UpstreamURL = strings.TrimRight(o.UpstreamURL, "/")
	if o.UpstreamURL == "" {
		o.UpstreamURL = DefaultUpstreamURL
	}
	return nil
}
