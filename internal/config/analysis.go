package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"eyescreen/pkg/tracking"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const defaultProfilePath = "config/analysis.yaml"

// Profile is the deployment's analysis profile. It is read from YAML and
// then overridden field by field from the environment.
type Profile struct {
	Deployment string `yaml:"deployment"`

	HistFrames     int     `yaml:"hist_frames" validate:"min=15,max=600"`
	MovePxMin      float64 `yaml:"move_px_min" validate:"gte=0"`
	RatioThresh    float64 `yaml:"ratio_thresh" validate:"gt=0,lte=1"`
	Policy         string  `yaml:"policy" validate:"oneof=bounce interval"`
	IntervalFrames int     `yaml:"interval_frames" validate:"min=1,ltefield=HistFrames"`
	FrameStride    int     `yaml:"frame_stride" validate:"min=1,max=10"`
	StimulusSpeed  int     `yaml:"stimulus_speed" validate:"min=1"`
	StimulusWidth  int     `yaml:"stimulus_width" validate:"min=1"`

	MaxVideoMB      int64         `yaml:"max_video_mb" validate:"min=1,max=1024"`
	MaxImageMB      int64         `yaml:"max_image_mb" validate:"min=1,max=100"`
	UploadDir       string        `yaml:"upload_dir" validate:"required"`
	UploadMaxAge    time.Duration `yaml:"upload_max_age" validate:"gt=0"`
	SweepSchedule   string        `yaml:"sweep_schedule" validate:"required"`
	ArchiveEnabled  bool          `yaml:"archive_enabled"`
	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" validate:"gt=0"`

	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"gt=0"`
	RateLimitBurst     int     `yaml:"rate_limit_burst" validate:"min=1"`
}

func DefaultProfile() Profile {
	t := tracking.DefaultConfig()
	return Profile{
		Deployment:         "local",
		HistFrames:         t.HistFrames,
		MovePxMin:          t.MovePxMin,
		RatioThresh:        t.RatioThresh,
		Policy:             string(t.Policy),
		IntervalFrames:     t.IntervalFrames,
		FrameStride:        t.FrameStride,
		StimulusSpeed:      t.StimulusSpeed,
		StimulusWidth:      t.StimulusWidth,
		MaxVideoMB:         50,
		MaxImageMB:         10,
		UploadDir:          "./uploads",
		UploadMaxAge:       time.Hour,
		SweepSchedule:      "*/15 * * * *",
		CacheTTL:           24 * time.Hour,
		AnalysisTimeout:    2 * time.Minute,
		RateLimitPerSecond: 2,
		RateLimitBurst:     10,
	}
}

// LoadProfile reads the YAML profile at path (ANALYSIS_CONFIG_PATH or
// config/analysis.yaml when empty), applies environment overrides and
// validates the result. A missing file is not an error.
func LoadProfile(path string, validate *validator.Validate) (Profile, error) {
	cfg := DefaultProfile()

	if path == "" {
		path = defaultProfilePath
		if envPath := os.Getenv("ANALYSIS_CONFIG_PATH"); envPath != "" {
			path = envPath
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Profile{}, fmt.Errorf("error parsing %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Profile{}, fmt.Errorf("error reading %s: %w", path, err)
	}

	envOverride(&cfg.Deployment, "DEPLOYMENT")
	envOverride(&cfg.Policy, "ANALYSIS_POLICY")
	envOverride(&cfg.UploadDir, "UPLOAD_DIR")
	envOverride(&cfg.SweepSchedule, "UPLOAD_SWEEP_SCHEDULE")
	envOverrideBool(&cfg.ArchiveEnabled, "S3_ARCHIVE_ENABLED")

	overrides := []error{
		envOverrideInt(&cfg.HistFrames, "HIST_FRAMES"),
		envOverrideFloat(&cfg.MovePxMin, "MOVE_THRESHOLD_PX"),
		envOverrideFloat(&cfg.RatioThresh, "RATIO_THRESHOLD"),
		envOverrideInt(&cfg.IntervalFrames, "INTERVAL_FRAMES"),
		envOverrideInt(&cfg.FrameStride, "FRAME_STRIDE"),
		envOverrideInt64(&cfg.MaxVideoMB, "MAX_VIDEO_MB"),
		envOverrideInt64(&cfg.MaxImageMB, "MAX_IMAGE_MB"),
		envOverrideDuration(&cfg.UploadMaxAge, "UPLOAD_MAX_AGE"),
		envOverrideDuration(&cfg.CacheTTL, "REPORT_CACHE_TTL"),
		envOverrideDuration(&cfg.AnalysisTimeout, "ANALYSIS_TIMEOUT"),
		envOverrideFloat(&cfg.RateLimitPerSecond, "RATE_LIMIT_PER_SECOND"),
		envOverrideInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST"),
	}
	if err := errors.Join(overrides...); err != nil {
		return Profile{}, err
	}

	if validate == nil {
		validate = NewValidator()
	}
	if err := validate.Struct(cfg); err != nil {
		return Profile{}, fmt.Errorf("invalid analysis profile: %w", err)
	}
	if err := cfg.Tracking().Validate(); err != nil {
		return Profile{}, err
	}

	return cfg, nil
}

func (p Profile) Tracking() tracking.Config {
	return tracking.Config{
		HistFrames:     p.HistFrames,
		MovePxMin:      p.MovePxMin,
		RatioThresh:    p.RatioThresh,
		Policy:         tracking.WindowPolicy(p.Policy),
		IntervalFrames: p.IntervalFrames,
		FrameStride:    p.FrameStride,
		StimulusSpeed:  p.StimulusSpeed,
		StimulusWidth:  p.StimulusWidth,
	}
}

func (p Profile) MaxVideoBytes() int64 {
	return p.MaxVideoMB * 1024 * 1024
}

func (p Profile) MaxImageBytes() int64 {
	return p.MaxImageMB * 1024 * 1024
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideInt64(field *int64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
