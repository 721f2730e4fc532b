package replay

import (
	"context"
	"fmt"
	"time"
)

// Driver is the part of the navigator a replay needs.
type Driver interface {
	Tick()
	ProcessEvents() int
}

// Rig holds the simulated collaborators a scenario acts on.
type Rig struct {
	Feed     *Feed
	Dropdown *Dropdown
	Player   *Player
}

// NewRig creates collaborators with the player at the scenario start.
func NewRig(sc *Scenario) *Rig {
	return &Rig{
		Feed:     NewFeed(),
		Dropdown: NewDropdown(),
		Player:   NewPlayer(sc.StartPosition()),
	}
}

// Hooks observe a run. All fields are optional.
type Hooks struct {
	BeforeStep func(index int, step Step)
	AfterTick  func(tick int)
	// TickInterval paces ticks in real time. Zero runs flat out.
	TickInterval time.Duration
}

// Run executes the scenario steps in order. Marker, select and move steps
// take effect before the next step; ticks step the navigator. It stops early
// when ctx is done.
func Run(ctx context.Context, sc *Scenario, rig *Rig, nav Driver, hooks Hooks) error {
	ticks := 0
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hooks.BeforeStep != nil {
			hooks.BeforeStep(i, step)
		}

		switch {
		case step.Marker != nil:
			changes, err := step.Marker.Changes()
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			rig.Feed.Emit(changes)
			nav.ProcessEvents()
		case step.Select != nil:
			rig.Dropdown.Choose(*step.Select)
			nav.ProcessEvents()
		case step.Move != nil:
			pos, err := position(step.Move)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			rig.Player.MoveTo(pos)
		}

		for n := 0; n < step.Ticks; n++ {
			if err := wait(ctx, hooks.TickInterval); err != nil {
				return err
			}
			nav.Tick()
			ticks++
			if hooks.AfterTick != nil {
				hooks.AfterTick(ticks)
			}
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
