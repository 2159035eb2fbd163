package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTransport()
	c.normalizeSender()
	c.normalizeWorkers()
	c.normalizeRender()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = ExpandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.OutputDir, err = ExpandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransport() {
	c.Transport.Bind = strings.TrimSpace(c.Transport.Bind)
	c.Transport.Connect = strings.TrimSpace(c.Transport.Connect)
	if c.Transport.DialTimeout <= 0 {
		c.Transport.DialTimeout = defaultDialTimeout
	}
}

func (c *Config) normalizeSender() {
	if c.Sender.MaxAttempts <= 0 {
		c.Sender.MaxAttempts = defaultMaxAttempts
	}
	if c.Sender.RetryDelayMS <= 0 {
		c.Sender.RetryDelayMS = defaultRetryDelayMS
	}
	if len(c.Sender.Extensions) == 0 {
		c.Sender.Extensions = append([]string{}, defaultExtensions...)
	}
	for i, ext := range c.Sender.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Sender.Extensions[i] = ext
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Count <= 0 {
		c.Workers.Count = defaultWorkerCount
	}
	if c.Workers.QueueDepth <= 0 {
		c.Workers.QueueDepth = defaultQueueDepth
	}
	if c.Workers.DrainTimeout <= 0 {
		c.Workers.DrainTimeout = defaultDrainTimeout
	}
}

func (c *Config) normalizeRender() {
	if strings.TrimSpace(c.Render.Rasterizer) == "" {
		c.Render.Rasterizer = defaultRasterizer
	}
	if strings.TrimSpace(c.Render.InfoTool) == "" {
		c.Render.InfoTool = defaultInfoTool
	}
	if c.Label.DPI <= 0 {
		c.Label.DPI = defaultLabelDPI
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
