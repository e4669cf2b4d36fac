// Package config loads the server's small INI configuration file: the
// listen address, accept backlog, and metrics endpoint.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the entire configuration tree.
type Config struct {
	Server  ServerConfig
	Metrics MetricsConfig
}

// ServerConfig controls the chat listener. Backlog is parsed and kept
// here, but the listener in internal/server does not apply it.
type ServerConfig struct {
	IP      string
	Port    int
	Backlog int
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
}

// Default returns the configuration used when no file is given: the
// listener binds all interfaces on the protocol's registered port, and
// metrics are off.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:      "0.0.0.0",
			Port:    34551,
			Backlog: 5,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1:9090",
		},
	}
}

// Address returns the server's listen address in host:port form.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.IP, c.Server.Port)
}

// LoadConfig reads and parses an INI file, starting from Default and
// overwriting only the keys the file sets.
func LoadConfig(filename string) (*Config, error) {
	content, err := readFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := parseINI(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

func readFile(filename string) (string, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func parseINI(content string, config *Config) error {
	lines := strings.Split(content, "\n")
	var currentSection string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.Trim(line, "[]")
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if err := setConfigValue(config, currentSection, key, value); err != nil {
				return err
			}
		}
	}

	return nil
}

func setConfigValue(config *Config, section, key, value string) error {
	switch section {
	case "Server":
		switch key {
		case "IP":
			config.Server.IP = value
		case "Port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid port value: %s", value)
			}
			config.Server.Port = port
		case "Backlog":
			backlog, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid backlog value: %s", value)
			}
			config.Server.Backlog = backlog
		}
	case "Metrics":
		switch key {
		case "Enabled":
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid metrics enabled value: %s", value)
			}
			config.Metrics.Enabled = enabled
		case "ListenAddress":
			config.Metrics.ListenAddress = value
		}
	}
	return nil
}
