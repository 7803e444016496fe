package homeassistant

import (
	"context"
	"log"
	"time"

	"mythtv_control/internal/backend"
	"mythtv_control/internal/frontend"
)

const mirrorTimeout = 5 * time.Second

// Mirror writes frontend and tuner states into Home Assistant as
// media_player.mythtv_<slug> and binary_sensor.mythtv_<slug>
type Mirror struct {
	client *Client
}

// NewMirror creates a mirror on client
func NewMirror(client *Client) *Mirror {
	return &Mirror{client: client}
}

// MediaPlayerEntityID is the entity id used for a frontend
func MediaPlayerEntityID(name string) string {
	return "media_player.mythtv_" + frontend.Slug(name)
}

// TunerEntityID is the entity id used for a tuner sensor
func TunerEntityID(name string) string {
	return "binary_sensor.mythtv_" + frontend.Slug(name)
}

// MediaPlayerAttributes maps a snapshot onto media player attributes
func MediaPlayerAttributes(s frontend.State) map[string]interface{} {
	attrs := map[string]interface{}{
		"friendly_name":      s.Name,
		"supported_features": int(s.SupportedFeatures),
	}
	if s.VolumeControllable {
		attrs["volume_level"] = s.VolumeLevel
		attrs["is_volume_muted"] = s.IsVolumeMuted
	}
	if s.State.Active() {
		attrs["media_title"] = s.MediaTitle
		attrs["media_duration"] = s.MediaDuration
		attrs["media_position"] = s.MediaPosition
		if s.MediaPositionUpdatedAt != nil {
			attrs["media_position_updated_at"] = s.MediaPositionUpdatedAt.Format(time.RFC3339)
		}
		if s.MediaImageURL != "" {
			attrs["entity_picture"] = s.MediaImageURL
		}
	}
	return attrs
}

// PublishFrontend mirrors one frontend snapshot. Errors are logged.
func (m *Mirror) PublishFrontend(s frontend.State) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if _, err := m.client.SetState(ctx, MediaPlayerEntityID(s.Name), s.State.String(), MediaPlayerAttributes(s)); err != nil {
		log.Printf("Home Assistant: Failed to mirror %s: %v", s.Name, err)
	}
}

// PublishTuners mirrors tuner connectivity
func (m *Mirror) PublishTuners(tuners []backend.Tuner) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	for _, t := range tuners {
		state := "off"
		if t.Connected {
			state = "on"
		}
		attrs := map[string]interface{}{
			"friendly_name": t.Name,
			"device_class":  "connectivity",
		}
		if _, err := m.client.SetState(ctx, TunerEntityID(t.Name), state, attrs); err != nil {
			log.Printf("Home Assistant: Failed to mirror tuner %s: %v", t.Name, err)
		}
	}
}
