package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"eyescreen/pkg/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadProfile_Defaults(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultProfile(), p)
	assert.Equal(t, tracking.DefaultConfig(), p.Tracking())
	assert.Equal(t, int64(50*1024*1024), p.MaxVideoBytes())
}

func TestLoadProfile_YAML(t *testing.T) {
	path := writeProfile(t, `
deployment: clinic
policy: interval
interval_frames: 45
frame_stride: 2
move_px_min: 25
upload_max_age: 30m
cache_ttl: 1h
`)

	p, err := LoadProfile(path, NewValidator())
	require.NoError(t, err)

	assert.Equal(t, "clinic", p.Deployment)
	assert.Equal(t, 30*time.Minute, p.UploadMaxAge)
	assert.Equal(t, time.Hour, p.CacheTTL)

	cfg := p.Tracking()
	assert.Equal(t, tracking.PolicyInterval, cfg.Policy)
	assert.Equal(t, 45, cfg.IntervalFrames)
	assert.Equal(t, 2, cfg.FrameStride)
	assert.Equal(t, 25.0, cfg.MovePxMin)
	assert.Equal(t, tracking.DefaultHistFrames, cfg.HistFrames)
}

func TestLoadProfile_EnvOverridesFile(t *testing.T) {
	path := writeProfile(t, "policy: interval\nframe_stride: 2\n")
	t.Setenv("ANALYSIS_POLICY", "bounce")
	t.Setenv("FRAME_STRIDE", "3")
	t.Setenv("S3_ARCHIVE_ENABLED", "true")
	t.Setenv("ANALYSIS_TIMEOUT", "45s")

	p, err := LoadProfile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "bounce", p.Policy)
	assert.Equal(t, 3, p.FrameStride)
	assert.True(t, p.ArchiveEnabled)
	assert.Equal(t, 45*time.Second, p.AnalysisTimeout)
}

func TestLoadProfile_PathFromEnv(t *testing.T) {
	t.Setenv("ANALYSIS_CONFIG_PATH", writeProfile(t, "deployment: from-env\n"))

	p, err := LoadProfile("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.Deployment)
}

func TestLoadProfile_Invalid(t *testing.T) {
	cases := map[string]struct {
		yaml string
		env  map[string]string
	}{
		"unknown policy":    {yaml: "policy: sweep\n"},
		"short history":     {yaml: "hist_frames: 5\n"},
		"ratio above one":   {yaml: "ratio_thresh: 1.5\n"},
		"interval too long": {yaml: "policy: interval\ninterval_frames: 90\n"},
		"broken yaml":       {yaml: "policy: [\n"},
		"bad env int":       {env: map[string]string{"HIST_FRAMES": "sixty"}},
		"bad env duration":  {env: map[string]string{"UPLOAD_MAX_AGE": "soon"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadProfile(writeProfile(t, tc.yaml), nil)
			assert.Error(t, err)
		})
	}
}
