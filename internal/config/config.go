// Package config loads the server's static configuration via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig is the top-level configuration, mapped to the "server:"
// root key in YAML; env vars carry no prefix and are the upper-cased key
// path with dots replaced by underscores (e.g. SERVER_NETWORK_LISTEN).
type ServerConfig struct {
	Network NetworkConfig `mapstructure:"network"`
	World   WorldConfig   `mapstructure:"world"`
	Log     LogConfig     `mapstructure:"log"`
}

// NetworkConfig configures the UDP listener and handshake constants.
type NetworkConfig struct {
	Listen       string `mapstructure:"listen"`
	InboundQueue int    `mapstructure:"inbound_queue"`
	SendQueue    int    `mapstructure:"send_queue"`
	TickInterval string `mapstructure:"tick_interval"`

	// HandshakeRate/HandshakeBurst bound replies to InitialPacket per
	// source address (a stateless cookie responder is a classic
	// amplification target).
	HandshakeRate  float64 `mapstructure:"handshake_rate"`
	HandshakeBurst int     `mapstructure:"handshake_burst"`

	// IdleTimeout prunes a connection's transport-level session registry
	// entry after this long without a received datagram. The connection
	// state machine itself never times out on its own; this is a
	// transport-layer concern only.
	IdleTimeout string `mapstructure:"idle_timeout"`
}

// WorldConfig configures the initial map and game identity advertised
// during the Welcome handshake.
type WorldConfig struct {
	Map      string `mapstructure:"map"`
	GameName string `mapstructure:"game_name"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type configRoot struct {
	Server ServerConfig `mapstructure:"server"`
}

// Load reads configuration from path, applies defaults, and validates it.
func Load(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Server

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.network.listen", ":7777")
	v.SetDefault("server.network.inbound_queue", 1024)
	v.SetDefault("server.network.send_queue", 1024)
	v.SetDefault("server.network.tick_interval", "50ms")
	v.SetDefault("server.network.handshake_rate", 5.0)
	v.SetDefault("server.network.handshake_burst", 10)
	v.SetDefault("server.network.idle_timeout", "120s")

	v.SetDefault("server.world.map", "maps/default")
	v.SetDefault("server.world.game_name", "samp-server-go")

	v.SetDefault("server.log.level", "info")
	v.SetDefault("server.log.format", "text")
}

func (cfg *ServerConfig) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Network.Listen == "" {
		return fmt.Errorf("server.network.listen must not be empty")
	}
	if _, err := time.ParseDuration(cfg.Network.TickInterval); err != nil {
		return fmt.Errorf("invalid server.network.tick_interval: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Network.IdleTimeout); err != nil {
		return fmt.Errorf("invalid server.network.idle_timeout: %w", err)
	}
	return nil
}
