package config

import "time"

// ChannelConfig declares one chat channel created at startup.
type ChannelConfig struct {
	Name     string `mapstructure:"name" yaml:"name" validate:"required,max=64"`
	Capacity int    `mapstructure:"capacity" yaml:"capacity" validate:"min=1"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string          `mapstructure:"addr" yaml:"addr" validate:"required"`
	HTTPAddr          string          `mapstructure:"http_addr" yaml:"http_addr"`
	ReadHeaderTimeout time.Duration   `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string          `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`
	DatabasePath      string          `mapstructure:"database_path" yaml:"database_path" validate:"required"`
	MaxLineLength     int             `mapstructure:"max_line_length" yaml:"max_line_length" validate:"min=16"`
	OutboxSize        int             `mapstructure:"outbox_size" yaml:"outbox_size" validate:"min=1"`
	HistorySize       int             `mapstructure:"history_size" yaml:"history_size" validate:"min=1"`
	SeatReservation   bool            `mapstructure:"seat_reservation" yaml:"seat_reservation"`
	Channels          []ChannelConfig `mapstructure:"channels" yaml:"channels" validate:"required,min=1,unique=Name,dive"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8023",
		HTTPAddr:          ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      ":memory:",
		MaxLineLength:     8192,
		OutboxSize:        64,
		HistorySize:       10,
		SeatReservation:   true,
		Channels: []ChannelConfig{
			{Name: "general", Capacity: 2},
			{Name: "zepto", Capacity: 2},
			{Name: "test", Capacity: 2},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// SeatReservation is a plain bool and is left to the config file.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxLineLength != 0 {
		c.MaxLineLength = other.MaxLineLength
	}
	if other.OutboxSize != 0 {
		c.OutboxSize = other.OutboxSize
	}
	if other.HistorySize != 0 {
		c.HistorySize = other.HistorySize
	}
	if len(other.Channels) != 0 {
		c.Channels = other.Channels
	}
}
