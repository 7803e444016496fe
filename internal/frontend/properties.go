package frontend

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is a point in time copy of everything the hub shows for a frontend
type State struct {
	Name                   string      `json:"name"`
	UniqueID               string      `json:"unique_id"`
	Host                   string      `json:"host"`
	Port                   int         `json:"port"`
	State                  PlayerState `json:"state"`
	Connected              bool        `json:"connected"`
	VolumeControllable     bool        `json:"volume_controllable"`
	VolumeLevel            float64     `json:"volume_level"`
	IsVolumeMuted          bool        `json:"is_volume_muted"`
	MediaTitle             string      `json:"media_title,omitempty"`
	MediaDuration          int         `json:"media_duration"`
	MediaPosition          int         `json:"media_position"`
	MediaPositionUpdatedAt *time.Time  `json:"media_position_updated_at,omitempty"`
	MediaImageURL          string      `json:"media_image_url,omitempty"`
	SupportedFeatures      Feature     `json:"supported_features"`
}

func (s State) changeKey() string {
	return fmt.Sprintf("%s|%v|%v|%v|%.2f|%s|%d|%d|%s|%d",
		s.State, s.Connected, s.VolumeControllable, s.IsVolumeMuted, s.VolumeLevel,
		s.MediaTitle, s.MediaDuration, s.MediaPosition, s.MediaImageURL, s.SupportedFeatures)
}

// Name returns the display name
func (f *Frontend) Name() string {
	return f.cfg.Name
}

// UniqueID returns a stable id for the hub entity registry
func (f *Frontend) UniqueID() string {
	return "mythtv_" + f.cfg.Name
}

// Slug turns a frontend name into a topic and entity id safe token:
// lower case letters, digits and underscores
func Slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// State returns the current player state
func (f *Frontend) State() PlayerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Connected reports whether discovery last saw the frontend online
func (f *Frontend) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Volume returns the volume state
func (f *Frontend) Volume() VolumeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

// VolumeLevel returns the volume from 0 to 1
func (f *Frontend) VolumeLevel() float64 {
	return float64(f.Volume().Level) / 100
}

// IsVolumeMuted reports the mute flag
func (f *Frontend) IsVolumeMuted() bool {
	return f.Volume().Muted
}

// Status returns a copy of the last status payload
func (f *Frontend) Status() DeviceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(DeviceStatus, len(f.status))
	for k, v := range f.status {
		out[k] = v
	}
	return out
}

// MediaTitle returns the title of the current media
func (f *Frontend) MediaTitle() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return DisplayTitle(f.status)
}

// MediaDuration returns the media length in seconds
func (f *Frontend) MediaDuration() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return atoi(f.status["totalseconds"])
}

// MediaPosition returns the playback position in seconds
func (f *Frontend) MediaPosition() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return atoi(f.status["secondsplayed"])
}

// MediaPositionUpdatedAt returns when the position was read; nil unless
// media is playing or paused
func (f *Frontend) MediaPositionUpdatedAt() *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.Active() || f.positionAt.IsZero() {
		return nil
	}
	t := f.positionAt
	return &t
}

// MediaImageURL returns the artwork URL, empty when there is none
func (f *Frontend) MediaImageURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageURL
}

// SupportedFeatures returns the capability bitmask
func (f *Frontend) SupportedFeatures() Feature {
	return supportedFeatures(f.cfg.MAC != "", f.Volume().Controllable)
}

// Snapshot copies every property into a State. All fields come from the
// same poll.
func (f *Frontend) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	var positionAt *time.Time
	if f.state.Active() && !f.positionAt.IsZero() {
		t := f.positionAt
		positionAt = &t
	}
	return State{
		Name:                   f.cfg.Name,
		UniqueID:               f.UniqueID(),
		Host:                   f.cfg.Host,
		Port:                   f.cfg.Port,
		State:                  f.state,
		Connected:              f.connected,
		VolumeControllable:     f.volume.Controllable,
		VolumeLevel:            float64(f.volume.Level) / 100,
		IsVolumeMuted:          f.volume.Muted,
		MediaTitle:             DisplayTitle(f.status),
		MediaDuration:          atoi(f.status["totalseconds"]),
		MediaPosition:          atoi(f.status["secondsplayed"]),
		MediaPositionUpdatedAt: positionAt,
		MediaImageURL:          f.imageURL,
		SupportedFeatures:      supportedFeatures(f.cfg.MAC != "", f.volume.Controllable),
	}
}

func atoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
