package history

import (
	"context"
	"time"

	"codeberg.org/mutker/devdash/internal/telemetry"
)

// Recorder stores merged view states for later inspection.
type Recorder interface {
	Record(ctx context.Context, sample *Sample) error
	Recent(ctx context.Context, limit int) ([]Sample, error)
	Close() error
	IsReadOnly() bool
}

// Repository is the storage behind a Recorder.
type Repository interface {
	Record(sample *Sample) error
	Recent(ctx context.Context, limit int) ([]Sample, error)
	Close() error
}

// Sample is one recorded row. Nil pointers are values that were unknown
// when the row was taken.
type Sample struct {
	Timestamp        time.Time `json:"timestamp"`
	BatteryLevel     *float64  `json:"battery_level"`
	BatteryState     *string   `json:"battery_state"`
	StepCount        *int64    `json:"step_count"`
	StepGoal         int64     `json:"step_goal"`
	StorageFreeBytes *int64    `json:"storage_free_bytes"`
	MemoryUsedBytes  *int64    `json:"memory_used_bytes"`
	NetworkConnected *bool     `json:"network_connected"`
	TemperatureC     *float64  `json:"temperature_c"`
	WeatherCode      *int64    `json:"weather_code"`
}

// FromViewState captures the rows' fields from vs.
func FromViewState(vs telemetry.ViewState) *Sample {
	s := &Sample{
		Timestamp: vs.UpdatedAt,
		StepGoal:  int64(vs.StepGoal),
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	if v, ok := vs.BatteryLevel.Get(); ok {
		s.BatteryLevel = &v
	}
	if v, ok := vs.BatteryState.Get(); ok {
		state := v.String()
		s.BatteryState = &state
	}
	if v, ok := vs.StepCount.Get(); ok {
		n := int64(v)
		s.StepCount = &n
	}
	if v, ok := vs.StorageFreeBytes.Get(); ok {
		n := int64(v)
		s.StorageFreeBytes = &n
	}
	if v, ok := vs.MemoryUsedBytes.Get(); ok {
		n := int64(v)
		s.MemoryUsedBytes = &n
	}
	if v, ok := vs.NetworkConnected.Get(); ok {
		s.NetworkConnected = &v
	}
	if w, ok := vs.Weather.Get(); ok {
		temp := w.TemperatureC
		code := int64(w.Code)
		s.TemperatureC = &temp
		s.WeatherCode = &code
	}

	return s
}
