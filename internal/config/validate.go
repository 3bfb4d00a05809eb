package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks configuration invariants that normalize cannot repair.
func (c *Config) Validate() error {
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateVerification(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCamera() error {
	switch c.Camera.FacingMode {
	case "user", "environment":
	default:
		return fmt.Errorf("camera.facing_mode must be \"user\" or \"environment\", got %q", c.Camera.FacingMode)
	}
	if device := c.Camera.Device; device != "" && !strings.HasPrefix(device, "/dev/") {
		return fmt.Errorf("camera.device must be a device node path, got %q", device)
	}
	return nil
}

func (c *Config) validateVerification() error {
	endpoint := c.Verification.Endpoint
	if endpoint == "" {
		// Endpoint is only required at submission time; capture works offline.
		return nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("verification.endpoint is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("verification.endpoint must use http or https, got %q", endpoint)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
