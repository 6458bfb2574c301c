package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rkathuria/sliceq/internal/config"
)

func TestDefault_HasCanonicalValues(t *testing.T) {
	p := config.Default()

	if p.Timeouts.UserBlockingMs != 250 {
		t.Errorf("expected user_blocking_ms 250, got %d", p.Timeouts.UserBlockingMs)
	}
	if p.Timeouts.NormalMs != 5_000 {
		t.Errorf("expected normal_ms 5000, got %d", p.Timeouts.NormalMs)
	}
	if p.Timeouts.LowMs != 10_000 {
		t.Errorf("expected low_ms 10000, got %d", p.Timeouts.LowMs)
	}
	if p.Windows.InteractiveMs != 100 {
		t.Errorf("expected interactive_ms 100, got %d", p.Windows.InteractiveMs)
	}
	if p.Windows.BackgroundMs != 250 {
		t.Errorf("expected background_ms 250, got %d", p.Windows.BackgroundMs)
	}
	if !p.Frame.Paced {
		t.Error("frame pacing must be enabled by default")
	}
	if p.Frame.InitialMs != 33 {
		t.Errorf("expected initial_ms 33, got %d", p.Frame.InitialMs)
	}
	if p.Frame.FloorMs != 8 {
		t.Errorf("expected floor_ms 8, got %d", p.Frame.FloorMs)
	}
	if p.Slice.MaxSliceMs != 50 {
		t.Errorf("expected max_slice_ms 50, got %d", p.Slice.MaxSliceMs)
	}
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	p, err := config.Load("/tmp/sliceq_nonexistent_profile_12345.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if p.Timeouts.NormalMs != 5_000 {
		t.Errorf("expected default normal_ms for missing file, got %d", p.Timeouts.NormalMs)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	yaml := `
timeouts:
  user_blocking_ms: 100
  normal_ms: 2000
slice:
  max_slice_ms: 16
`
	path := writeTempYAML(t, yaml)

	p, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if p.Timeouts.UserBlockingMs != 100 {
		t.Errorf("expected user_blocking_ms 100, got %d", p.Timeouts.UserBlockingMs)
	}
	if p.Timeouts.NormalMs != 2000 {
		t.Errorf("expected normal_ms 2000, got %d", p.Timeouts.NormalMs)
	}
	if p.Slice.MaxSliceMs != 16 {
		t.Errorf("expected max_slice_ms 16, got %d", p.Slice.MaxSliceMs)
	}
	// Unset fields keep their defaults.
	if p.Timeouts.LowMs != 10_000 {
		t.Errorf("expected default low_ms 10000 (unchanged), got %d", p.Timeouts.LowMs)
	}
	if p.Windows.BackgroundMs != 250 {
		t.Errorf("expected default background_ms 250 (unchanged), got %d", p.Windows.BackgroundMs)
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	path := writeTempYAML(t, "timeouts: [invalid: yaml: {{{}}")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLICEQ_FRAME_PACED", "false")
	t.Setenv("SLICEQ_MAX_SLICE_MS", "25")

	p, err := config.Load("/tmp/sliceq_nonexistent_profile_12345.yaml")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p.Frame.Paced {
		t.Error("expected SLICEQ_FRAME_PACED=false to disable frame pacing")
	}
	if p.Slice.MaxSliceMs != 25 {
		t.Errorf("expected max_slice_ms 25 from env, got %d", p.Slice.MaxSliceMs)
	}
}

func TestValidate_Default(t *testing.T) {
	p := config.Default()
	if err := p.Validate(); err != nil {
		t.Errorf("default profile should be valid, got: %v", err)
	}
}

func TestValidate_TimeoutOrdering(t *testing.T) {
	p := config.Default()
	p.Timeouts.NormalMs = p.Timeouts.UserBlockingMs - 1
	if err := p.Validate(); err == nil {
		t.Error("expected validation error when normal_ms < user_blocking_ms")
	}

	p = config.Default()
	p.Timeouts.LowMs = p.Timeouts.NormalMs - 1
	if err := p.Validate(); err == nil {
		t.Error("expected validation error when low_ms < normal_ms")
	}
}

func TestValidate_SubTickTimeout(t *testing.T) {
	p := config.Default()
	p.Timeouts.UserBlockingMs = config.TickMs - 1
	if err := p.Validate(); err == nil {
		t.Error("expected validation error for sub-tick user_blocking_ms")
	}
}

func TestValidate_WindowOrdering(t *testing.T) {
	p := config.Default()
	p.Windows.BackgroundMs = p.Windows.InteractiveMs - 1
	if err := p.Validate(); err == nil {
		t.Error("expected validation error when background_ms < interactive_ms")
	}
}

func TestValidate_FrameBounds(t *testing.T) {
	p := config.Default()
	p.Frame.FloorMs = 0
	if err := p.Validate(); err == nil {
		t.Error("expected validation error for floor_ms 0")
	}

	p = config.Default()
	p.Frame.InitialMs = p.Frame.FloorMs - 1
	if err := p.Validate(); err == nil {
		t.Error("expected validation error when initial_ms < floor_ms")
	}
}

func TestValidate_SliceBounds(t *testing.T) {
	p := config.Default()
	p.Slice.MaxSliceMs = 0
	if err := p.Validate(); err == nil {
		t.Error("expected validation error for max_slice_ms 0")
	}
}

// writeTempYAML writes content to a temp file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTempYAML: %v", err)
	}
	return path
}
