package ctl

import (
	"fmt"
	"io"
	"strings"
	"time"

	"codeberg.org/mutker/devdash/internal/history"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

// RenderState prints one line per card.
func RenderState(w io.Writer, v telemetry.View) {
	rows := []struct {
		name string
		fv   telemetry.FieldView
	}{
		{"Battery", v.Battery},
		{"Steps", v.Steps},
		{"Storage", v.Storage},
		{"Memory", v.Memory},
		{"Network", v.Network},
		{"Device", v.Device},
		{"Weather", v.Weather},
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  DEVDASH")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 48))
	for _, r := range rows {
		line := fmt.Sprintf("  %-9s %s", r.name+":", r.fv.Label)
		if r.fv.Status != telemetry.StatusOK && r.fv.Reason != "" {
			line += " (" + r.fv.Reason + ")"
		} else if r.fv.Reason != "" {
			line += " [stale]"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  %-9s %d\n", "Goal:", v.StepGoal)
	if !v.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  %-9s %s\n", "Updated:", v.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)
}

// RenderHistory prints a table of samples, newest first.
func RenderHistory(w io.Writer, samples []history.Sample) {
	if len(samples) == 0 {
		fmt.Fprintln(w, "  no samples recorded")
		return
	}

	fmt.Fprintf(w, "  %-19s  %-8s  %-10s  %-8s  %s\n", "TIME", "BATTERY", "STATE", "STEPS", "TEMP")
	for _, s := range samples {
		fmt.Fprintf(w, "  %-19s  %-8s  %-10s  %-8s  %s\n",
			s.Timestamp.Local().Format(time.DateTime),
			optional(s.BatteryLevel, func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) }),
			optional(s.BatteryState, func(v string) string { return v }),
			optional(s.StepCount, func(v int64) string { return fmt.Sprint(v) }),
			optional(s.TemperatureC, func(v float64) string { return fmt.Sprintf("%.1f°C", v) }),
		)
	}
}

func optional[T any](v *T, format func(T) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}
