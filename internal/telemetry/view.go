package telemetry

import (
	"fmt"
	"math"
	"time"
)

// Field display states.
const (
	StatusOK          = "ok"
	StatusLoading     = "loading"
	StatusUnavailable = "unavailable"
)

const (
	labelLoading     = "Loading..."
	labelUnavailable = "Unavailable"
	reasonStepsStale = "no step count for today yet"
	bytesPerGB       = 1 << 30
)

// FieldView is one card of the dashboard.
type FieldView struct {
	Status string `json:"status"`
	Value  any    `json:"value,omitempty"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

type BatteryValue struct {
	Level float64   `json:"level"`
	State string    `json:"state"`
	Since time.Time `json:"since"`
}

type StepsValue struct {
	Count    int     `json:"count"`
	Goal     int     `json:"goal"`
	Progress float64 `json:"progress"`
}

type StorageValue struct {
	TotalGB     float64 `json:"total_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

type MemoryValue struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	UsedPercent float64 `json:"used_percent"`
}

type NetworkValue struct {
	Type      NetworkType `json:"type"`
	Connected bool        `json:"connected"`
	IPAddress string      `json:"ip_address,omitempty"`
}

type DeviceValue struct {
	Model     string `json:"model,omitempty"`
	OSVersion string `json:"os_version,omitempty"`
	CPU       string `json:"cpu,omitempty"`
	UptimeMs  int64  `json:"uptime_ms"`
	Uptime    string `json:"uptime,omitempty"`
}

type NotifiedView struct {
	Battery80       bool `json:"battery_80"`
	Battery100      bool `json:"battery_100"`
	StepGoalReached bool `json:"step_goal_reached"`
}

// View is the read-only projection handed to the rendering layer.
type View struct {
	Battery   FieldView    `json:"battery"`
	Steps     FieldView    `json:"steps"`
	Storage   FieldView    `json:"storage"`
	Memory    FieldView    `json:"memory"`
	Network   FieldView    `json:"network"`
	Device    FieldView    `json:"device"`
	Weather   FieldView    `json:"weather"`
	StepGoal  int          `json:"step_goal"`
	Notified  NotifiedView `json:"notified"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// View projects the state for display as of its last update.
func (vs ViewState) View() View {
	return vs.ViewAt(vs.UpdatedAt)
}

// ViewAt projects the state for display at now. A step count from an earlier
// day is not shown as today's.
func (vs ViewState) ViewAt(now time.Time) View {
	v := View{
		StepGoal: vs.StepGoal,
		Notified: NotifiedView{
			Battery80:       vs.Battery80.Fired(),
			Battery100:      vs.Battery100.Fired(),
			StepGoalReached: vs.StepGoalReached.Fired(),
		},
		UpdatedAt: vs.UpdatedAt,
	}

	v.Battery = vs.placeholder(SourceBattery)
	if level, ok := vs.BatteryLevel.Get(); ok {
		state := vs.BatteryState.Value()
		v.Battery = vs.known(SourceBattery, BatteryValue{
			Level: level,
			State: state.String(),
			Since: vs.BatteryStateSince,
		}, fmt.Sprintf("%d%% %s", int(math.Round(level*100)), BatteryStateLabel(state)))
	}

	v.Steps = vs.placeholder(SourcePedometer)
	if count, ok := vs.StepCount.Get(); ok && vs.stepsFromEarlierDay(now) {
		v.Steps = FieldView{Status: StatusUnavailable, Label: labelUnavailable, Reason: reasonStepsStale}
		if status := vs.Status[SourcePedometer]; status.LastFailure != nil {
			v.Steps.Reason = status.LastFailure.Reason
		}
	} else if ok {
		progress := 0.0
		if vs.StepGoal > 0 {
			progress = math.Min(float64(count)/float64(vs.StepGoal), 1)
		}
		v.Steps = vs.known(SourcePedometer, StepsValue{
			Count:    count,
			Goal:     vs.StepGoal,
			Progress: progress,
		}, fmt.Sprintf("%d / %d steps", count, vs.StepGoal))
	}

	v.Storage = vs.placeholder(SourceStorage)
	if total, ok := vs.StorageTotalBytes.Get(); ok {
		free := vs.StorageFreeBytes.Value()
		value := StorageValue{
			TotalGB:     ToGB(total),
			FreeGB:      ToGB(free),
			UsedPercent: usedPercent(total-min(free, total), total),
		}
		v.Storage = vs.known(SourceStorage, value,
			fmt.Sprintf("Free: %.2f GB / Total: %.2f GB", value.FreeGB, value.TotalGB))
	}

	v.Memory = vs.placeholder(SourceMemory)
	if total, ok := vs.MemoryTotalBytes.Get(); ok {
		used := vs.MemoryUsedBytes.Value()
		value := MemoryValue{
			TotalGB:     ToGB(total),
			UsedGB:      ToGB(used),
			UsedPercent: usedPercent(used, total),
		}
		v.Memory = vs.known(SourceMemory, value,
			fmt.Sprintf("%.0f%% of %.2f GB", value.UsedPercent, value.TotalGB))
	}

	v.Network = vs.placeholder(SourceNetwork)
	if kind, ok := vs.NetworkType.Get(); ok {
		value := NetworkValue{
			Type:      kind,
			Connected: vs.NetworkConnected.Value(),
			IPAddress: vs.IPAddress.Value(),
		}
		label := "Offline"
		if value.Connected {
			label = string(kind)
			if value.IPAddress != "" {
				label += " " + value.IPAddress
			}
		}
		v.Network = vs.known(SourceNetwork, value, label)
	}

	v.Device = vs.placeholder(SourceDevice)
	if vs.DeviceModel.IsPresent() || vs.DeviceCPULabel.IsPresent() || vs.DeviceUptimeMs.IsPresent() {
		uptime := vs.DeviceUptimeMs.Value()
		value := DeviceValue{
			Model:     vs.DeviceModel.Value(),
			OSVersion: vs.OSVersion.Value(),
			CPU:       vs.DeviceCPULabel.Value(),
			UptimeMs:  uptime,
			Uptime:    FormatUptime(time.Duration(uptime) * time.Millisecond),
		}
		label := value.Model
		if label == "" {
			label = value.CPU
		}
		v.Device = vs.known(SourceDevice, value, label)
	}

	v.Weather = vs.placeholder(SourceWeather)
	if w, ok := vs.Weather.Get(); ok {
		v.Weather = vs.known(SourceWeather, w,
			fmt.Sprintf("%s %.0f°C %s", w.Locality, w.TemperatureC, w.Description))
	}

	return v
}

func (vs ViewState) stepsFromEarlierDay(now time.Time) bool {
	return vs.StepDay != "" && !now.IsZero() && vs.StepDay != Day(now)
}

// placeholder distinguishes a source that has never reported from one
// that reported only failures.
func (vs ViewState) placeholder(src Source) FieldView {
	status, ok := vs.Status[src]
	if !ok || !status.Attempted {
		return FieldView{Status: StatusLoading, Label: labelLoading}
	}

	fv := FieldView{Status: StatusUnavailable, Label: labelUnavailable}
	if status.LastFailure != nil {
		fv.Reason = status.LastFailure.Reason
	}

	return fv
}

// known renders a present value. A stale value keeps the reason of the
// failure that followed it.
func (vs ViewState) known(src Source, value any, label string) FieldView {
	fv := FieldView{Status: StatusOK, Value: value, Label: label}
	if status, ok := vs.Status[src]; ok && status.LastFailure != nil {
		fv.Reason = status.LastFailure.Reason
	}

	return fv
}

// BatteryStateLabel returns the text shown next to the battery level.
func BatteryStateLabel(s BatteryState) string {
	switch s {
	case BatteryCharging:
		return "Charging"
	case BatteryFull:
		return "Full"
	case BatteryUnplugged:
		return "Unplugged"
	default:
		return "Unknown"
	}
}

// ToGB converts bytes to gigabytes rounded to two decimals.
func ToGB(b uint64) float64 {
	return math.Round(float64(b)/bytesPerGB*100) / 100
}

func usedPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(used)/float64(total)*1000) / 10
}

// FormatUptime renders d as days, hours and minutes.
func FormatUptime(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
