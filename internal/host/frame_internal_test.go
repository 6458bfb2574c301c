package host

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newAdaptFixture(initial, floor int64) *FramePaced {
	return &FramePaced{
		floorMs:  floor,
		frameLen: initial,
		limiter:  rate.NewLimiter(rate.Every(time.Duration(initial)*time.Millisecond), 1),
	}
}

func TestAdapt_RequiresTwoConsecutiveShortFrames(t *testing.T) {
	f := newAdaptFixture(33, 8)

	f.adapt(1_000) // first activation, nothing to compare against
	f.adapt(1_016) // one short interval (16ms) is not yet evidence
	if f.frameLen != 33 {
		t.Fatalf("frameLen = %d after one short interval, want 33", f.frameLen)
	}

	f.adapt(1_032) // second consecutive short interval confirms the cadence
	if f.frameLen != 16 {
		t.Fatalf("frameLen = %d after two short intervals, want 16", f.frameLen)
	}
}

func TestAdapt_UsesSlowerOfTheTwoIntervals(t *testing.T) {
	f := newAdaptFixture(33, 8)

	f.adapt(1_000)
	f.adapt(1_020) // 20ms
	f.adapt(1_034) // 14ms; estimate adjusts to the slower observation
	if f.frameLen != 20 {
		t.Fatalf("frameLen = %d, want 20 (the larger of 20 and 14)", f.frameLen)
	}
}

func TestAdapt_ClampsToFloor(t *testing.T) {
	f := newAdaptFixture(33, 8)

	f.adapt(1_000)
	f.adapt(1_004)
	f.adapt(1_008)
	if f.frameLen != 8 {
		t.Fatalf("frameLen = %d, want the 8ms floor", f.frameLen)
	}
}

func TestAdapt_LongFramesNeverGrowTheEstimate(t *testing.T) {
	f := newAdaptFixture(33, 8)

	f.adapt(1_000)
	f.adapt(1_100) // 100ms, slower than the estimate
	f.adapt(1_200)
	if f.frameLen != 33 {
		t.Fatalf("frameLen = %d after slow frames, want 33 unchanged", f.frameLen)
	}
}
