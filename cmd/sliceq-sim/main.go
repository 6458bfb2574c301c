// Command sliceq-sim replays a YAML scenario against a sliceq runtime on a
// virtual clock and prints the resulting owner states and metrics. It exists
// to make scheduling behavior observable: which updates coalesced, which
// folds were deferred, when expired work forced a drain.
//
// Usage:
//
//	sliceq-sim --scenario path/to/scenario.yaml [--profile path/to/profile.yaml]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rkathuria/sliceq/pkg/sliceq"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sliceq-sim: %v\n", err)
		os.Exit(1)
	}
}

// Scenario is the YAML shape the simulator replays.
type Scenario struct {
	StartMs int64          `yaml:"start_ms"`
	Owners  []OwnerSpec    `yaml:"owners"`
	Steps   []ScenarioStep `yaml:"steps"`
}

// OwnerSpec declares one owner and its initial state.
type OwnerSpec struct {
	Name    string `yaml:"name"`
	Initial any    `yaml:"initial"`
	Props   any    `yaml:"props"`
}

// ScenarioStep is one timed action. Exactly one of the action groups applies:
// an enqueue (kind present), a work request (request: true), or a synchronous
// flush (flush: true).
type ScenarioStep struct {
	AtMs     int64  `yaml:"at_ms"`
	Owner    string `yaml:"owner"`
	Priority string `yaml:"priority"`

	Kind   string `yaml:"kind"`
	Value  any    `yaml:"value"`
	Append string `yaml:"append"`

	Request bool `yaml:"request"`
	Flush   bool `yaml:"flush"`
}

func run() error {
	scenarioPath := flag.String("scenario", "scenario.yaml", "path to scenario file")
	profilePath := flag.String("profile", "profile.yaml", "path to profile file")
	flag.Parse()

	// ── 1. Load profile and scenario ─────────────────────────────────────────
	prof, err := sliceq.LoadProfile(*profilePath)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	data, err := os.ReadFile(*scenarioPath)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("parse scenario %s: %w", *scenarioPath, err)
	}
	if len(sc.Owners) == 0 {
		return fmt.Errorf("scenario declares no owners")
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── 3. Wire runtime on a virtual clock ───────────────────────────────────
	hst := sliceq.NewManualHost(sc.StartMs)
	hst.SetSliceBudget(prof.Slice.MaxSliceMs)

	rt, err := sliceq.New(
		sliceq.WithHost(hst),
		sliceq.WithProfile(prof),
		sliceq.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer rt.Close()

	owners := make(map[string]string, len(sc.Owners))
	for _, o := range sc.Owners {
		if o.Name == "" {
			return fmt.Errorf("owner with empty name")
		}
		owners[o.Name] = rt.NewOwner(o.Initial, o.Props)
	}

	slog.Info("sliceq-sim starting",
		"scenario", *scenarioPath,
		"owners", len(sc.Owners),
		"steps", len(sc.Steps),
		"start_ms", sc.StartMs,
	)

	// ── 4. Replay steps in time order ────────────────────────────────────────
	steps := make([]ScenarioStep, len(sc.Steps))
	copy(steps, sc.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].AtMs < steps[j].AtMs })

	for i, st := range steps {
		advanceTo(hst, sc.StartMs+st.AtMs)
		if err := applyStep(rt, owners, st); err != nil {
			return fmt.Errorf("step %d (at_ms=%d): %w", i, st.AtMs, err)
		}
	}

	// ── 5. Settle: run the clock forward until nothing is armed ──────────────
	settle(hst, prof.Timeouts.LowMs+prof.Windows.BackgroundMs)

	// ── 6. Report final states and metrics ───────────────────────────────────
	for _, o := range sc.Owners {
		state, err := rt.State(owners[o.Name])
		if err != nil {
			return fmt.Errorf("read state of %q: %w", o.Name, err)
		}
		slog.Info("owner settled", "owner", o.Name, "state", state)
	}

	fmt.Println()
	rt.Metrics().Render(os.Stdout)

	slog.Info("sliceq-sim done", "virtual_ms", hst.Now()-sc.StartMs)
	return nil
}

// advanceTo moves the virtual clock to target, delivering every armed host
// callback whose deadline falls on the way.
func advanceTo(hst *sliceq.ManualHost, target int64) {
	for {
		armed, deadline := hst.Armed()
		if !armed || deadline > target {
			break
		}
		if deadline > hst.Now() {
			hst.Advance(deadline - hst.Now())
		}
		hst.FirePending()
	}
	if now := hst.Now(); now < target {
		hst.Advance(target - now)
	}
}

// settle keeps delivering armed callbacks until the runtime goes quiet,
// advancing at most horizon per hop so a stuck re-arm loop cannot spin the
// simulator forever.
func settle(hst *sliceq.ManualHost, horizon int64) {
	for i := 0; i < 10_000; i++ {
		armed, deadline := hst.Armed()
		if !armed {
			return
		}
		target := deadline
		if limit := hst.Now() + horizon; target > limit {
			target = limit
		}
		if target > hst.Now() {
			hst.Advance(target - hst.Now())
		}
		hst.FirePending()
	}
	slog.Warn("settle gave up, host still armed")
}

func applyStep(rt *sliceq.Runtime, owners map[string]string, st ScenarioStep) error {
	id, ok := owners[st.Owner]
	if !ok {
		return fmt.Errorf("unknown owner %q", st.Owner)
	}
	prio, err := parsePriority(st.Priority)
	if err != nil {
		return err
	}

	switch {
	case st.Flush:
		return rt.FlushSync(id, nil)

	case st.Request:
		return rt.RequestWork(id, prio)

	case st.Kind != "":
		kind, err := parseKind(st.Kind)
		if err != nil {
			return err
		}
		payload := sliceq.Value(st.Value)
		if st.Append != "" {
			suffix := st.Append
			payload = sliceq.Func(func(prev, _ any) any {
				s, _ := prev.(string)
				return s + suffix
			})
		}
		u := rt.BuildUpdate(prio, kind, payload, nil)
		return rt.EnqueueUpdate(id, u)

	default:
		return fmt.Errorf("step has no action (want kind, request or flush)")
	}
}

func parsePriority(s string) (sliceq.Priority, error) {
	switch s {
	case "immediate":
		return sliceq.Immediate, nil
	case "user_blocking":
		return sliceq.UserBlocking, nil
	case "", "normal":
		return sliceq.Normal, nil
	case "low":
		return sliceq.Low, nil
	case "idle":
		return sliceq.Idle, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

func parseKind(s string) (sliceq.UpdateKind, error) {
	switch s {
	case "set":
		return sliceq.Set, nil
	case "replace":
		return sliceq.Replace, nil
	case "force":
		return sliceq.Force, nil
	case "capture":
		return sliceq.Capture, nil
	default:
		return 0, fmt.Errorf("unknown update kind %q", s)
	}
}
