package config

const (
	defaultDataDir               = "~/.local/share/veriflow/data"
	defaultStagingDir            = "~/.local/share/veriflow/staging"
	defaultLogDir                = "~/.local/share/veriflow/logs"
	defaultFacingMode            = "user"
	defaultCameraWidth           = 640
	defaultCameraHeight          = 480
	defaultCameraFrameRate       = 30
	defaultAcquireTimeoutSeconds = 10
	defaultReadyTimeoutSeconds   = 3
	defaultRecordingSeconds      = 5
	defaultCountdownTicks        = 3
	defaultVideoBitrate          = 2_500_000
	defaultProbeTimeoutSeconds   = 10
	defaultSeekTimeoutSeconds    = 10
	defaultEncodeTimeoutSeconds  = 10
	defaultBlankLumaThreshold    = 16.0
	defaultSubmitTimeoutSeconds  = 60
	defaultStatusPollSeconds     = 10
	defaultMaxArtifactSizeBytes  = 10 << 20
	defaultNtfyRequestTimeout    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Camera: Camera{
			FacingMode:            defaultFacingMode,
			Width:                 defaultCameraWidth,
			Height:                defaultCameraHeight,
			FrameRate:             defaultCameraFrameRate,
			AcquireTimeoutSeconds: defaultAcquireTimeoutSeconds,
			ReadyTimeoutSeconds:   defaultReadyTimeoutSeconds,
		},
		Recording: Recording{
			DurationSeconds: defaultRecordingSeconds,
			CountdownTicks:  defaultCountdownTicks,
			VideoBitrate:    defaultVideoBitrate,
		},
		Extraction: Extraction{
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			SeekTimeoutSeconds:   defaultSeekTimeoutSeconds,
			EncodeTimeoutSeconds: defaultEncodeTimeoutSeconds,
			BlankLumaThreshold:   defaultBlankLumaThreshold,
		},
		Verification: Verification{
			SubmitTimeoutSeconds: defaultSubmitTimeoutSeconds,
			StatusPollSeconds:    defaultStatusPollSeconds,
			MaxArtifactSizeBytes: defaultMaxArtifactSizeBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Capture:        true,
			Submission:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
