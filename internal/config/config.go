// Package config loads the service settings from the environment and an
// optional TOML file of frontends.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"mythtv_control/internal/backend"
	"mythtv_control/internal/frontend"
	"mythtv_control/internal/mythtv"
	"mythtv_control/internal/wol"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// Config is the whole service configuration
type Config struct {
	Port string

	BackendHost       string
	BackendPort       int
	Discovery         bool
	DiscoveryInterval time.Duration

	Frontends     []frontend.Config
	ShowArtwork   bool
	TurnOff       frontend.TurnOffAction
	Timeout       time.Duration
	PollInterval  time.Duration
	FailurePolicy frontend.FailurePolicy
	NotifyOrigin  string

	// MQTT settings
	MQTTHost      string
	MQTTPort      int
	MQTTUsername  string
	MQTTPassword  string
	MQTTBaseTopic string

	HomeAssistantURL   string
	HomeAssistantToken string
}

// Load reads the environment (after any .env has been applied) and returns
// a validated config
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		BackendHost:        strings.TrimSpace(getEnv("MYTHTV_BACKEND_HOST", "")),
		BackendPort:        parseIntEnv("MYTHTV_BACKEND_PORT", mythtv.DefaultBackendPort),
		DiscoveryInterval:  parseDurationEnv("MYTHTV_DISCOVERY_INTERVAL", backend.DefaultDiscoveryInterval),
		ShowArtwork:        parseBoolEnv("MYTHTV_SHOW_ARTWORK", true),
		Timeout:            time.Duration(parseIntEnv("MYTHTV_TIMEOUT_MS", 1000)) * time.Millisecond,
		PollInterval:       parseDurationEnv("MYTHTV_POLL_INTERVAL", frontend.DefaultPollInterval),
		NotifyOrigin:       getEnv("MYTHTV_NOTIFY_ORIGIN", " "),
		MQTTHost:           getEnv("MQTT_HOST", ""),
		MQTTPort:           parseIntEnv("MQTT_PORT", 1883),
		MQTTUsername:       getEnv("MQTT_USERNAME", ""),
		MQTTPassword:       getEnv("MQTT_PASSWORD", ""),
		MQTTBaseTopic:      strings.Trim(getEnv("MQTT_BASE_TOPIC", "mythtv"), "/"),
		HomeAssistantURL:   strings.TrimRight(getEnv("HA_URL", ""), "/"),
		HomeAssistantToken: getEnv("HA_TOKEN", ""),
	}
	cfg.Discovery = parseBoolEnv("MYTHTV_DISCOVERY", cfg.BackendHost != "")

	turnOff, ok := frontend.ParseTurnOff(getEnv("MYTHTV_TURN_OFF", ""))
	if !ok {
		return Config{}, fmt.Errorf("%w: MYTHTV_TURN_OFF %q is not one of %v", ErrInvalid, os.Getenv("MYTHTV_TURN_OFF"), frontend.TurnOffOptions)
	}
	cfg.TurnOff = turnOff

	policy, ok := frontend.ParseFailurePolicy(getEnv("MYTHTV_API_ERROR_POLICY", ""))
	if !ok {
		return Config{}, fmt.Errorf("%w: MYTHTV_API_ERROR_POLICY must be unknown or probe", ErrInvalid)
	}
	cfg.FailurePolicy = policy

	defaults := cfg.FrontendDefaults()
	frontends, err := ParseFrontends(getEnv("MYTHTV_FRONTENDS", ""), defaults)
	if err != nil {
		return Config{}, err
	}
	if path := getEnv("MYTHTV_FRONTENDS_FILE", ""); path != "" {
		fromFile, err := LoadFrontendsFile(path, defaults)
		if err != nil {
			return Config{}, err
		}
		frontends = append(frontends, fromFile...)
	}
	cfg.Frontends = frontends

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and uniqueness
func (c Config) Validate() error {
	if c.BackendHost != "" && !validPort(c.BackendPort) {
		return fmt.Errorf("%w: backend port %d out of range", ErrInvalid, c.BackendPort)
	}
	if c.Discovery && c.BackendHost == "" {
		return fmt.Errorf("%w: discovery needs MYTHTV_BACKEND_HOST", ErrInvalid)
	}
	if c.MQTTHost != "" && !validPort(c.MQTTPort) {
		return fmt.Errorf("%w: MQTT port %d out of range", ErrInvalid, c.MQTTPort)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	}

	seen := make(map[string]bool)
	for _, fe := range c.Frontends {
		if fe.Host == "" {
			return fmt.Errorf("%w: frontend %q has no host", ErrInvalid, fe.Name)
		}
		if !validPort(fe.Port) {
			return fmt.Errorf("%w: frontend %q port %d out of range", ErrInvalid, fe.Name, fe.Port)
		}
		if fe.MAC != "" {
			if _, err := wol.MagicPacket(fe.MAC); err != nil {
				return fmt.Errorf("%w: frontend %q: %v", ErrInvalid, fe.Name, err)
			}
		}
		if seen[fe.Name] {
			return fmt.Errorf("%w: duplicate frontend name %q", ErrInvalid, fe.Name)
		}
		seen[fe.Name] = true
	}
	return nil
}

// FrontendDefaults returns the global per-frontend settings, used for
// discovered frontends and as the base of configured ones
func (c Config) FrontendDefaults() frontend.Config {
	return frontend.Config{
		Port:          mythtv.DefaultFrontendPort,
		ShowArtwork:   c.ShowArtwork,
		TurnOff:       c.TurnOff,
		Timeout:       c.Timeout,
		FailurePolicy: c.FailurePolicy,
	}
}

// ParseFrontends parses MYTHTV_FRONTENDS: "name=host[:port][@mac],..." where
// the name is optional and defaults to the host
func ParseFrontends(s string, defaults frontend.Config) ([]frontend.Config, error) {
	var out []frontend.Config
	for _, entry := range parseList(s) {
		fe := defaults

		if i := strings.Index(entry, "="); i >= 0 {
			fe.Name = strings.TrimSpace(entry[:i])
			entry = strings.TrimSpace(entry[i+1:])
		}
		if i := strings.LastIndex(entry, "@"); i >= 0 {
			fe.MAC = strings.TrimSpace(entry[i+1:])
			entry = strings.TrimSpace(entry[:i])
		}

		host, port, err := splitHostPort(entry, defaults.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: MYTHTV_FRONTENDS entry %q: %v", ErrInvalid, entry, err)
		}
		fe.Host = host
		fe.Port = port
		if fe.Name == "" {
			fe.Name = host
		}
		out = append(out, fe)
	}
	return out, nil
}

type fileFrontend struct {
	Name        string `toml:"name"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MAC         string `toml:"mac"`
	ShowArtwork *bool  `toml:"show_artwork"`
	TurnOff     string `toml:"turn_off"`
	Timeout     string `toml:"timeout"`
}

// LoadFrontendsFile reads [[frontend]] tables from a TOML file. Unset keys
// take the global defaults.
func LoadFrontendsFile(path string, defaults frontend.Config) ([]frontend.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frontends file: %w", err)
	}

	var raw struct {
		Frontend []fileFrontend `toml:"frontend"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse frontends file: %w", err)
	}

	out := make([]frontend.Config, 0, len(raw.Frontend))
	for i, r := range raw.Frontend {
		fe := defaults
		fe.Host = strings.TrimSpace(r.Host)
		fe.Name = strings.TrimSpace(r.Name)
		if fe.Name == "" {
			fe.Name = fe.Host
		}
		if r.Port != 0 {
			fe.Port = r.Port
		}
		fe.MAC = strings.TrimSpace(r.MAC)
		if r.ShowArtwork != nil {
			fe.ShowArtwork = *r.ShowArtwork
		}
		if strings.TrimSpace(r.TurnOff) != "" {
			turnOff, ok := frontend.ParseTurnOff(r.TurnOff)
			if !ok {
				return nil, fmt.Errorf("%w: frontend %d turn_off %q is not one of %v", ErrInvalid, i+1, r.TurnOff, frontend.TurnOffOptions)
			}
			fe.TurnOff = turnOff
		}
		if t := strings.TrimSpace(r.Timeout); t != "" {
			d, err := parseDuration(t)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("%w: frontend %d timeout %q", ErrInvalid, i+1, r.Timeout)
			}
			fe.Timeout = d
		}
		out = append(out, fe)
	}
	return out, nil
}

func splitHostPort(s string, fallback int) (string, int, error) {
	if s == "" {
		return "", 0, errors.New("empty host")
	}
	if !strings.Contains(s, ":") {
		return s, fallback, nil
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("bad port %q", portStr)
	}
	return host, port, nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

// parseDurationEnv accepts Go durations ("30s") or plain seconds ("30")
func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := parseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
