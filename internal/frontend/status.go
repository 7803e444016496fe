package frontend

import (
	"strings"

	"mythtv_control/internal/mythtv"
)

// DeviceStatus is the flattened State member of a Frontend/GetStatus reply,
// e.g. state, playspeed, title, subtitle, volume, mute, chanid, starttime,
// pathname, totalseconds, secondsplayed.
type DeviceStatus map[string]string

// PlayerState is the normalized media player state
type PlayerState int

const (
	StateUnknown PlayerState = iota
	StateOff
	StateIdle
	StateOn
	StatePlaying
	StatePaused
)

func (s PlayerState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateIdle:
		return "idle"
	case StateOn:
		return "on"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText lets PlayerState serialize as its hub name
func (s PlayerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether media is loaded (playing or paused)
func (s PlayerState) Active() bool {
	return s == StatePlaying || s == StatePaused
}

// Normalize maps a status payload onto a PlayerState
func Normalize(status DeviceStatus) PlayerState {
	state := status["state"]
	switch {
	case state == "idle":
		return StateIdle
	case strings.HasPrefix(state, "Watching"):
		if status["playspeed"] == "0" {
			return StatePaused
		}
		return StatePlaying
	default:
		return StateOn
	}
}

// DisplayTitle builds the media title shown to the user
func DisplayTitle(status DeviceStatus) string {
	title := status["title"]
	if sub := status["subtitle"]; sub != "" {
		if title != "" {
			title += " - " + sub
		} else {
			title = sub
		}
	}
	if strings.HasPrefix(status["state"], "WatchingLiveTV") {
		title = strings.TrimSpace(title + " (Live TV)")
	}
	return title
}

// FailurePolicy decides how an Abort/Warning reply is reported
type FailurePolicy int

const (
	// PolicyUnknown reports Unknown without further checks
	PolicyUnknown FailurePolicy = iota
	// PolicyProbe checks reachability and reports Off when the host is down
	PolicyProbe
)

// ParseFailurePolicy accepts "unknown" or "probe"
func ParseFailurePolicy(s string) (FailurePolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return PolicyUnknown, true
	case "probe":
		return PolicyProbe, true
	}
	return PolicyUnknown, false
}

func (p FailurePolicy) String() string {
	if p == PolicyProbe {
		return "probe"
	}
	return "unknown"
}

// ClassifyFailure maps a failed status poll to Off or Unknown. A transport
// failure means the device is down. An API failure means it answered, so it
// is Unknown unless the policy asks for a probe and the probe fails.
func ClassifyFailure(err error, policy FailurePolicy, probe func() bool) PlayerState {
	if mythtv.IsTransport(err) {
		return StateOff
	}
	if policy == PolicyProbe && probe != nil && !probe() {
		return StateOff
	}
	return StateUnknown
}
