package alert

import (
	"fmt"
	"time"

	"codeberg.org/mutker/devdash/internal/telemetry"
	"github.com/google/uuid"
)

// Thresholds for the battery rules.
const (
	BatteryFullLevel = 1.0
	Battery80Level   = 0.8
)

type Kind string

const (
	KindBatteryFull Kind = "battery_full"
	KindBattery80   Kind = "battery_80"
	KindStepGoal    Kind = "step_goal"
)

// Event is a user-facing alert decided by the engine.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Haptic bool      `json:"haptic"`
	At     time.Time `json:"at"`
}

// Engine evaluates the threshold rules against a view state.
type Engine struct {
	Now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// Evaluate applies the battery and step rules in order and returns the
// updated state together with any events that fired. Each latch lets its
// rule fire once until re-armed.
func (e *Engine) Evaluate(vs telemetry.ViewState) (telemetry.ViewState, []Event) {
	now := e.Now()
	out := vs.Clone()

	var events []Event

	level, hasLevel := out.BatteryLevel.Get()
	state, hasState := out.BatteryState.Get()
	if hasLevel && hasState {
		switch {
		case state.OnPower() && level >= BatteryFullLevel:
			if out.Battery100.Fire() {
				events = append(events, newEvent(KindBatteryFull, "Battery full",
					"Your battery is fully charged. You can unplug the charger.", false, now))
			}
		case state == telemetry.BatteryCharging && level >= Battery80Level:
			if out.Battery80.Fire() {
				events = append(events, newEvent(KindBattery80, "Battery at 80%",
					fmt.Sprintf("Battery reached %.0f%%. Unplug now to extend battery life.", level*100), false, now))
			}
		}

		if !state.OnPower() && level < Battery80Level {
			out.Battery80.Rearm()
			out.Battery100.Rearm()
		}
	}

	if out.StepDay != "" && out.StepDay != telemetry.Day(now) {
		out.StepGoalReached.Rearm()
	}

	if steps, ok := out.StepCount.Get(); ok && out.StepDay == telemetry.Day(now) && out.StepGoal > 0 && steps >= out.StepGoal {
		if out.StepGoalReached.Fire() {
			events = append(events, newEvent(KindStepGoal, "Step goal reached",
				fmt.Sprintf("You walked %d steps today and reached your goal of %d.", steps, out.StepGoal), true, now))
		}
	}

	return out, events
}

// GoalChanged sets a new step goal and re-arms the step rule. It does not
// evaluate; the next pass decides whether the new goal is already met.
func (*Engine) GoalChanged(vs telemetry.ViewState, goal int) telemetry.ViewState {
	out := vs.Clone()
	out.StepGoal = goal
	out.StepGoalReached.Rearm()
	return out
}

func newEvent(kind Kind, title, body string, haptic bool, at time.Time) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Title:  title,
		Body:   body,
		Haptic: haptic,
		At:     at,
	}
}
