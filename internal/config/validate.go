package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateLabel(); err != nil {
		return err
	}
	if err := c.validatePrinting(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.WatchDir == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateTransport() error {
	for name, addr := range map[string]string{
		"transport.bind":    c.Transport.Bind,
		"transport.connect": c.Transport.Connect,
	} {
		if addr == "" {
			return fmt.Errorf("%s must be set", name)
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: invalid host:port %q: %w", name, addr, err)
		}
	}
	return nil
}

func (c *Config) validateLabel() error {
	if c.Label.Width <= 0 || c.Label.Height <= 0 {
		return errors.New("label.width and label.height must be positive")
	}
	return nil
}

func (c *Config) validatePrinting() error {
	if !c.Printing.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Printing.Printer) == "" {
		return errors.New("printing.printer must be set when printing.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
