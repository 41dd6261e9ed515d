// Package config holds the slipctl configuration and its defaults.
package config

import (
	"fmt"
	"time"
)

const (
	DefaultBaudRate    = 115200
	DefaultMTU         = 1006 // RFC 1055
	DefaultReadTimeout = 100 * time.Millisecond

	MaxMTU = 65535
)

// Config stores the parameters gathered from command-line flags.
type Config struct {
	Port        string        // serial port; empty means none selected
	BaudRate    int           // line speed in bits per second
	MTU         int           // largest payload carried in one frame
	ReadTimeout time.Duration // serial read timeout
	Debug       bool
}

// Default returns a Config populated with the default values.
func Default() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		MTU:         DefaultMTU,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}
	if c.MTU < 1 || c.MTU > MaxMTU {
		return fmt.Errorf("invalid MTU: %d (must be 1~%d)", c.MTU, MaxMTU)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %s", c.ReadTimeout)
	}
	return nil
}

// RequirePort returns an error if no serial port is configured.
func (c Config) RequirePort() error {
	if c.Port == "" {
		return fmt.Errorf("no serial port specified (use --port)")
	}
	return nil
}
