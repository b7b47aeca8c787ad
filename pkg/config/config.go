package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "RVCM"

// Default credentials shipped with the router firmware.
const (
	DefaultUsername = "admin"
	DefaultPassword = "admin"
)

// Config represents the top-level configuration structure.
type Config struct {
	Global GlobalConfig `yaml:"global" mapstructure:"global"`
	Router RouterConfig `yaml:"router" mapstructure:"router"`
	Rules  []RuleConfig `yaml:"rules"  mapstructure:"rules"`
	Prune  bool         `yaml:"prune"  mapstructure:"prune"`
}

// GlobalConfig holds global settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// RouterConfig holds everything needed to talk to one router.
// It is passed by value so a client never observes later changes.
type RouterConfig struct {
	Host         string `yaml:"host"          mapstructure:"host"`
	Username     string `yaml:"username"      mapstructure:"username"`
	Password     string `yaml:"password"      mapstructure:"password"`
	PasswordFile string `yaml:"password_file" mapstructure:"password_file"`
	Debug        bool   `yaml:"debug"         mapstructure:"debug"`
}

// RuleConfig declares one desired port forwarding rule for sync.
type RuleConfig struct {
	Name           string `yaml:"name"             mapstructure:"name"`
	Enabled        *bool  `yaml:"enabled"          mapstructure:"enabled"`
	Protocol       string `yaml:"protocol"         mapstructure:"protocol"`
	PublicPortMin  int    `yaml:"public_port_min"  mapstructure:"public_port_min"`
	PublicPortMax  int    `yaml:"public_port_max"  mapstructure:"public_port_max"`
	PrivatePortMin int    `yaml:"private_port_min" mapstructure:"private_port_min"`
	PrivatePortMax int    `yaml:"private_port_max" mapstructure:"private_port_max"`
	Target         int    `yaml:"target"           mapstructure:"target"`
}

// IsEnabled returns whether the rule should be active.
// Defaults to true if not explicitly set.
func (r RuleConfig) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// GetProtocol returns the protocol name.
// Defaults to "both" if not set.
func (r RuleConfig) GetProtocol() string {
	if r.Protocol == "" {
		return "both"
	}
	return strings.ToLower(r.Protocol)
}

// GetPublicPortMax returns the upper public port, defaulting to the lower one.
func (r RuleConfig) GetPublicPortMax() int {
	if r.PublicPortMax == 0 {
		return r.PublicPortMin
	}
	return r.PublicPortMax
}

// GetPrivatePortMin returns the lower private port, defaulting to the lower public port.
func (r RuleConfig) GetPrivatePortMin() int {
	if r.PrivatePortMin == 0 {
		return r.PublicPortMin
	}
	return r.PrivatePortMin
}

// GetPrivatePortMax returns the upper private port, defaulting to the lower private port.
func (r RuleConfig) GetPrivatePortMax() int {
	if r.PrivatePortMax == 0 {
		return r.GetPrivatePortMin()
	}
	return r.PrivatePortMax
}

// validLogLevels is the set of accepted zap level names.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validProtocols is the set of supported forwarding protocols.
var validProtocols = map[string]bool{
	"tcp":  true,
	"udp":  true,
	"both": true,
}

// Manager handles configuration loading, validation, and hot-reload.
type Manager struct {
	viper      *viper.Viper
	configPath string
	current    *Config
	mu         sync.RWMutex
	onChange   chan struct{}
	logger     *zap.Logger
}

// legacyEnv lists, per key, the env names checked in order. The RC_ names
// are the ones earlier router scripts read.
var legacyEnv = map[string][]string{
	"router.host":     {"RVCM_ROUTER_HOST", "RC_IP"},
	"router.username": {"RVCM_ROUTER_USERNAME", "RC_USER"},
	"router.password": {"RVCM_ROUTER_PASSWORD", "RC_PASSWORD"},
}

// NewManager creates a config Manager on top of a prepared viper instance, loads
// and validates the initial configuration. configPath may be empty, in which case
// the default search paths are tried and a missing file is not an error.
func NewManager(v *viper.Viper, configPath string, logger *zap.Logger) (*Manager, error) {
	if v == nil {
		v = viper.New()
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rvcm")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/rvcm")
		}
		v.AddConfigPath("/etc/rvcm")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Set defaults
	v.SetDefault("global.log_level", "info")
	v.SetDefault("router.host", "")
	v.SetDefault("router.username", DefaultUsername)
	v.SetDefault("router.password", DefaultPassword)
	v.SetDefault("router.password_file", "")
	v.SetDefault("router.debug", false)
	v.SetDefault("prune", false)

	manager := &Manager{
		viper:      v,
		configPath: configPath,
		onChange:   make(chan struct{}, 1),
		logger:     logger,
	}

	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	manager.current = cfg

	return manager, nil
}

// Load reads the config file (if any), unmarshals it, resolves secrets and validates.
func (m *Manager) Load() (*Config, error) {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	password, err := ResolvePassword(cfg.Router.Password, cfg.Router.PasswordFile)
	if err != nil {
		return nil, err
	}
	cfg.Router.Password = password

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for correctness.
func Validate(cfg *Config) error {
	if cfg.Router.Host == "" {
		return fmt.Errorf("router.host is required (flag -i/--host or env %s_ROUTER_HOST)", envPrefix)
	}
	if strings.Contains(cfg.Router.Host, "/") {
		return fmt.Errorf("router.host %q must be a host or host:port, not a URL", cfg.Router.Host)
	}
	if cfg.Router.Username == "" {
		return fmt.Errorf("router.username is required")
	}

	level := cfg.Global.LogLevel
	if level == "" {
		cfg.Global.LogLevel = "info"
		level = "info"
	}
	if !validLogLevels[level] {
		return fmt.Errorf("unsupported global.log_level %q (supported: debug, info, warn, error)", level)
	}

	nameSet := make(map[string]bool)
	for i, rule := range cfg.Rules {
		if err := ValidateRuleName(rule.Name); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
		if nameSet[rule.Name] {
			return fmt.Errorf("rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		nameSet[rule.Name] = true

		if !validProtocols[rule.GetProtocol()] {
			return fmt.Errorf("rule %q: unsupported protocol %q (supported: tcp, udp, both)", rule.Name, rule.Protocol)
		}
		if err := validatePortRange("public", rule.PublicPortMin, rule.GetPublicPortMax()); err != nil {
			return fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if err := validatePortRange("private", rule.GetPrivatePortMin(), rule.GetPrivatePortMax()); err != nil {
			return fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if rule.Target < 0 || rule.Target > 255 {
			return fmt.Errorf("rule %q: target must be the last address octet (0-255), got %d", rule.Name, rule.Target)
		}
	}

	return nil
}

// ValidateRuleName rejects names that cannot survive the router's list encoding.
func ValidateRuleName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(name, "-;\"") {
		return fmt.Errorf("name %q must not contain '-', ';' or '\"'", name)
	}
	return nil
}

func validatePortRange(kind string, low, high int) error {
	if low < 1 || low > 65535 {
		return fmt.Errorf("%s port %d out of range 1-65535", kind, low)
	}
	if high < 1 || high > 65535 {
		return fmt.Errorf("%s port %d out of range 1-65535", kind, high)
	}
	if low > high {
		return fmt.Errorf("%s port range %d-%d is inverted", kind, low, high)
	}
	return nil
}

// ResolvePassword returns the password, reading from file if necessary.
// Priority: passwordFile (if set) > password
func ResolvePassword(password, passwordFile string) (string, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file %s: %w", passwordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return password, nil
}

// WatchConfig starts watching the config file for changes.
// On change, it reloads and validates; if valid, updates current config and notifies via onChange channel.
func (m *Manager) WatchConfig() {
	m.viper.OnConfigChange(func(event fsnotify.Event) {
		m.logger.Info("config file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))

		cfg, err := m.Load()
		if err != nil {
			m.logger.Error("failed to reload config, keeping previous config", zap.Error(err))
			return
		}

		m.mu.Lock()
		m.current = cfg
		m.mu.Unlock()

		m.logger.Info("config reloaded successfully", zap.Int("rules", len(cfg.Rules)))

		// Non-blocking send to notify listeners
		select {
		case m.onChange <- struct{}{}:
		default:
		}
	})

	m.viper.WatchConfig()
}

// GetConfig returns a snapshot of the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// ConfigFileUsed returns the path of the loaded config file, or "" if none was found.
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// OnChange returns a read-only channel that signals when config has changed.
func (m *Manager) OnChange() <-chan struct{} {
	return m.onChange
}
