package main

import (
	"strconv"

	"github.com/horgh/config"
	"github.com/pkg/errors"
)

const (
	defaultPort        = 4040
	defaultMaxUsers    = 2000
	defaultMaxChannels = 1000
	defaultServerName  = "Test-Server"
	defaultMOTD        = "Welcome to test Server!"
	defaultPoolSize    = 10

	minPort     = 1024
	maxPort     = 65535
	minUsers    = 1
	maxUsers    = 10000
	minChannels = 0
	maxChannels = 1000
	minPoolSize = 1
	maxPoolSize = 1000
)

// Config holds a server's configuration.
type Config struct {
	// Host to listen on. Blank means all interfaces.
	ListenHost string

	Port        int
	MaxUsers    int
	MaxChannels int
	ServerName  string
	MOTD        string

	// Number of session workers in the pool.
	PoolSize int

	// Port for the Prometheus /metrics endpoint. 0 disables it.
	MetricsPort int
}

// defaultConfig is the built-in debug configuration used when no config
// file is given.
func defaultConfig() Config {
	return Config{
		Port:        defaultPort,
		MaxUsers:    defaultMaxUsers,
		MaxChannels: defaultMaxChannels,
		ServerName:  defaultServerName,
		MOTD:        defaultMOTD,
		PoolSize:    defaultPoolSize,
	}
}

// loadConfig reads and checks a configuration file.
//
// The file is line-oriented "key = value" with '#' comments. Required keys:
// port, maxusers, maxchannels, servername, motd. Optional keys: listenhost,
// poolsize, metricsport.
func loadConfig(path string) (Config, error) {
	configMap, err := config.ReadStringMap(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "error reading configuration file")
	}

	requiredKeys := []string{
		"port",
		"maxusers",
		"maxchannels",
		"servername",
		"motd",
	}

	// Check each key we want is present and non-blank.
	for _, key := range requiredKeys {
		v, exists := configMap[key]
		if !exists {
			return Config{}, errors.Errorf("missing required key: %s", key)
		}
		if len(v) == 0 {
			return Config{}, errors.Errorf("configuration value is blank: %s",
				key)
		}
	}

	cfg := defaultConfig()

	cfg.Port, err = strconv.Atoi(configMap["port"])
	if err != nil {
		return Config{}, errors.Wrap(err, "port is not valid")
	}

	cfg.MaxUsers, err = strconv.Atoi(configMap["maxusers"])
	if err != nil {
		return Config{}, errors.Wrap(err, "maxusers is not valid")
	}

	cfg.MaxChannels, err = strconv.Atoi(configMap["maxchannels"])
	if err != nil {
		return Config{}, errors.Wrap(err, "maxchannels is not valid")
	}

	cfg.ServerName = configMap["servername"]
	cfg.MOTD = configMap["motd"]

	if v, exists := configMap["listenhost"]; exists {
		cfg.ListenHost = v
	}

	if v, exists := configMap["poolsize"]; exists {
		cfg.PoolSize, err = strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "poolsize is not valid")
		}
	}

	if v, exists := configMap["metricsport"]; exists {
		cfg.MetricsPort, err = strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "metricsport is not valid")
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate checks configuration values are in their acceptable ranges.
func (c Config) validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return errors.New("invalid port number")
	}
	if c.MaxUsers < minUsers || c.MaxUsers > maxUsers {
		return errors.New("invalid max users value")
	}
	if c.MaxChannels < minChannels || c.MaxChannels > maxChannels {
		return errors.New("invalid max channels value")
	}
	if len(c.ServerName) == 0 {
		return errors.New("server name cannot be empty")
	}
	if c.PoolSize < minPoolSize || c.PoolSize > maxPoolSize {
		return errors.New("invalid pool size")
	}
	if c.MetricsPort != 0 {
		if c.MetricsPort < minPort || c.MetricsPort > maxPort {
			return errors.New("invalid metrics port")
		}
		if c.MetricsPort == c.Port {
			return errors.New("metrics port conflicts with listen port")
		}
	}
	return nil
}
