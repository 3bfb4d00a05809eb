package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeRecording()
	c.normalizeExtraction()
	c.normalizeVerification()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	for _, entry := range []struct {
		name  string
		value *string
	}{
		{"data_dir", &c.Paths.DataDir},
		{"staging_dir", &c.Paths.StagingDir},
		{"log_dir", &c.Paths.LogDir},
	} {
		expanded, err := expandPath(strings.TrimSpace(*entry.value))
		if err != nil {
			return fmt.Errorf("normalize %s: %w", entry.name, err)
		}
		*entry.value = expanded
	}
	return nil
}

func (c *Config) normalizeCamera() {
	c.Camera.Device = strings.TrimSpace(c.Camera.Device)
	c.Camera.FacingMode = strings.ToLower(strings.TrimSpace(c.Camera.FacingMode))
	if c.Camera.FacingMode == "" {
		c.Camera.FacingMode = defaultFacingMode
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = defaultCameraWidth
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = defaultCameraHeight
	}
	if c.Camera.FrameRate <= 0 {
		c.Camera.FrameRate = defaultCameraFrameRate
	}
	if c.Camera.AcquireTimeoutSeconds <= 0 {
		c.Camera.AcquireTimeoutSeconds = defaultAcquireTimeoutSeconds
	}
	if c.Camera.ReadyTimeoutSeconds <= 0 {
		c.Camera.ReadyTimeoutSeconds = defaultReadyTimeoutSeconds
	}
}

func (c *Config) normalizeRecording() {
	if c.Recording.DurationSeconds <= 0 {
		c.Recording.DurationSeconds = defaultRecordingSeconds
	}
	if c.Recording.CountdownTicks <= 0 {
		c.Recording.CountdownTicks = defaultCountdownTicks
	}
	if c.Recording.VideoBitrate <= 0 {
		c.Recording.VideoBitrate = defaultVideoBitrate
	}
}

func (c *Config) normalizeExtraction() {
	if c.Extraction.ProbeTimeoutSeconds <= 0 {
		c.Extraction.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Extraction.SeekTimeoutSeconds <= 0 {
		c.Extraction.SeekTimeoutSeconds = defaultSeekTimeoutSeconds
	}
	if c.Extraction.EncodeTimeoutSeconds <= 0 {
		c.Extraction.EncodeTimeoutSeconds = defaultEncodeTimeoutSeconds
	}
	if c.Extraction.BlankLumaThreshold <= 0 {
		c.Extraction.BlankLumaThreshold = defaultBlankLumaThreshold
	}
}

func (c *Config) normalizeVerification() {
	c.Verification.Endpoint = strings.TrimRight(strings.TrimSpace(c.Verification.Endpoint), "/")
	if c.Verification.SubmitTimeoutSeconds <= 0 {
		c.Verification.SubmitTimeoutSeconds = defaultSubmitTimeoutSeconds
	}
	if c.Verification.StatusPollSeconds <= 0 {
		c.Verification.StatusPollSeconds = defaultStatusPollSeconds
	}
	if c.Verification.MaxArtifactSizeBytes <= 0 {
		c.Verification.MaxArtifactSizeBytes = defaultMaxArtifactSizeBytes
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
