// Package config holds the tuning profile for the sliceq core. The canonical
// configuration surface is the constant table returned by Default(); the YAML
// overlay exists for the simulator and for embedders that want to retune
// without recompiling. Profile structure never shrinks — fields are only
// added, never renamed or removed.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TickMs is the fixed urgency tick. All deadlines are measured in 10ms units
// to avoid high-resolution clock noise; two requests within the same tick are
// indistinguishable by design.
const TickMs = 10

// Profile is the root tuning profile for a sliceq runtime.
type Profile struct {
	Timeouts TimeoutProfile `yaml:"timeouts"`
	Windows  WindowProfile  `yaml:"windows"`
	Frame    FrameProfile   `yaml:"frame"`
	Slice    SliceProfile   `yaml:"slice"`
}

// TimeoutProfile maps each preemptible priority level to its default timeout:
// how long work at that level may sit pending before it expires and is
// drained unconditionally. Immediate work is synchronous and Idle work never
// expires, so neither carries a timeout here.
type TimeoutProfile struct {
	UserBlockingMs int64 `yaml:"user_blocking_ms"`
	NormalMs       int64 `yaml:"normal_ms"`
	LowMs          int64 `yaml:"low_ms"`
}

// WindowProfile sets the batch windows used to bucket nearby deadlines.
// Requests whose deadlines land in the same window receive an identical
// urgency score and coalesce into one pass.
type WindowProfile struct {
	// InteractiveMs is the window for user-blocking work. Short, so that
	// interactive responses are not held back waiting for stragglers.
	InteractiveMs int64 `yaml:"interactive_ms"`
	// BackgroundMs is the window for normal and low priority work. Long, so
	// that bursts of background invalidations collapse into a single fold.
	BackgroundMs int64 `yaml:"background_ms"`
}

// FrameProfile controls the frame-paced host adapter.
type FrameProfile struct {
	// Paced selects the frame-paced adapter. False falls back to the degraded
	// always-ready adapter (every request fires on the next available turn).
	Paced bool `yaml:"paced"`
	// InitialMs is the nominal frame length the adapter starts from before it
	// has observed any real activation intervals.
	InitialMs int64 `yaml:"initial_ms"`
	// FloorMs clamps the adapted frame length so the adapter never commits to
	// a cadence faster than supported refresh rates.
	FloorMs int64 `yaml:"floor_ms"`
}

// SliceProfile bounds a single time-sliced flush burst.
type SliceProfile struct {
	// MaxSliceMs is an internally tracked forced deadline: even if the host
	// adapter never reports its slice exhausted, a time-sliced flush yields
	// after this long.
	MaxSliceMs int64 `yaml:"max_slice_ms"`
}

// Default returns a Profile populated with the canonical constants.
// It is the source of truth for default values.
func Default() Profile {
	return Profile{
		Timeouts: TimeoutProfile{
			UserBlockingMs: 250,
			NormalMs:       5_000,
			LowMs:          10_000,
		},
		Windows: WindowProfile{
			InteractiveMs: 100,
			BackgroundMs:  250,
		},
		Frame: FrameProfile{
			Paced:     true,
			InitialMs: 33,
			FloorMs:   8,
		},
		Slice: SliceProfile{
			MaxSliceMs: 50,
		},
	}
}

// Load reads a YAML profile at path and overlays it on top of Default().
// If the file does not exist the default profile is returned without error,
// so sliceq runs with no profile file at all.
//
// After loading the file, environment variables are applied as overrides:
//
//	SLICEQ_FRAME_PACED     — "false"/"0" forces the degraded always-ready adapter
//	SLICEQ_MAX_SLICE_MS    — overrides slice.max_slice_ms
func Load(path string) (Profile, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&p)
			return p, nil
		}
		return Profile{}, err
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}

	applyEnv(&p)
	return p, nil
}

// applyEnv overlays environment variable overrides onto p.
func applyEnv(p *Profile) {
	if v := os.Getenv("SLICEQ_FRAME_PACED"); v == "false" || v == "0" {
		p.Frame.Paced = false
	}
	if v := os.Getenv("SLICEQ_MAX_SLICE_MS"); v != "" {
		var ms int64
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && ms > 0 {
			p.Slice.MaxSliceMs = ms
		}
	}
}

// Validate checks that the profile values are consistent and within acceptable
// ranges. It returns the first error found.
func (p Profile) Validate() error {
	if p.Timeouts.UserBlockingMs < TickMs {
		return fmt.Errorf("timeouts.user_blocking_ms must be at least one tick (%dms)", TickMs)
	}
	if p.Timeouts.NormalMs < p.Timeouts.UserBlockingMs {
		return errors.New("timeouts.normal_ms must not be below timeouts.user_blocking_ms")
	}
	if p.Timeouts.LowMs < p.Timeouts.NormalMs {
		return errors.New("timeouts.low_ms must not be below timeouts.normal_ms")
	}
	if p.Windows.InteractiveMs < TickMs {
		return fmt.Errorf("windows.interactive_ms must be at least one tick (%dms)", TickMs)
	}
	if p.Windows.BackgroundMs < p.Windows.InteractiveMs {
		return errors.New("windows.background_ms must not be below windows.interactive_ms")
	}
	if p.Frame.FloorMs < 1 {
		return errors.New("frame.floor_ms must be at least 1")
	}
	if p.Frame.InitialMs < p.Frame.FloorMs {
		return errors.New("frame.initial_ms must not be below frame.floor_ms")
	}
	if p.Slice.MaxSliceMs < 1 {
		return errors.New("slice.max_slice_ms must be at least 1")
	}
	return nil
}
