package frontend

import (
	"context"
	"errors"
	"log"
	"math"
)

// action sends a command, treating a disconnected frontend as a no-op
func (f *Frontend) action(ctx context.Context, action string, value *int) error {
	_, err := f.SendAction(ctx, action, value)
	if errors.Is(err, ErrDisconnected) {
		return nil
	}
	return err
}

func intPtr(v int) *int {
	return &v
}

// Play resumes playback
func (f *Frontend) Play(ctx context.Context) error {
	return f.action(ctx, ActionPlay, nil)
}

// Pause pauses playback
func (f *Frontend) Pause(ctx context.Context) error {
	return f.action(ctx, ActionPause, nil)
}

// PlayPause toggles between playing and paused. Other states are ignored.
func (f *Frontend) PlayPause(ctx context.Context) error {
	switch f.State() {
	case StatePlaying:
		return f.Pause(ctx)
	case StatePaused:
		return f.Play(ctx)
	}
	return nil
}

// Next jumps forward
func (f *Frontend) Next(ctx context.Context) error {
	return f.action(ctx, ActionNext, nil)
}

// Previous jumps back
func (f *Frontend) Previous(ctx context.Context) error {
	return f.action(ctx, ActionPrevious, nil)
}

// VolumeUp steps the volume up
func (f *Frontend) VolumeUp(ctx context.Context) error {
	return f.action(ctx, ActionVolumeUp, nil)
}

// VolumeDown steps the volume down
func (f *Frontend) VolumeDown(ctx context.Context) error {
	return f.action(ctx, ActionVolumeDown, nil)
}

// SetVolumeLevel sets the volume from a 0..1 level. Ignored while the
// frontend does not report a volume.
func (f *Frontend) SetVolumeLevel(ctx context.Context, level float64) error {
	if !f.Volume().Controllable {
		return nil
	}
	level = math.Max(0, math.Min(1, level))
	return f.action(ctx, ActionSetVolume, intPtr(int(math.Round(level*100))))
}

// Mute sets the mute state. MUTE toggles on the frontend, so it is only
// sent when the current state differs. Ignored while not controllable.
func (f *Frontend) Mute(ctx context.Context, mute bool) error {
	vol := f.Volume()
	if !vol.Controllable || vol.Muted == mute {
		return nil
	}
	return f.action(ctx, ActionMute, nil)
}

// Seek jumps to an absolute position in seconds
func (f *Frontend) Seek(ctx context.Context, position float64) error {
	if position < 0 {
		position = 0
	}
	return f.action(ctx, ActionSeekAbsolute, intPtr(int(position)))
}

// Stop leaves playback; only sent while media is playing or paused
func (f *Frontend) Stop(ctx context.Context) error {
	if !f.State().Active() {
		return nil
	}
	return f.action(ctx, ActionEscape, nil)
}

// TurnOn sends a wake signal when a MAC address is configured. It is the
// only command that works while disconnected.
func (f *Frontend) TurnOn(ctx context.Context) error {
	if f.cfg.MAC == "" || f.waker == nil {
		return nil
	}
	if err := f.waker.Wake(f.cfg.MAC); err != nil {
		log.Printf("MythTV: Failed to wake '%s': %v", f.cfg.Name, err)
		return err
	}
	return nil
}

// TurnOff sends the configured system event and then reports Unknown
// until the next poll, as the frontend may stop answering.
func (f *Frontend) TurnOff(ctx context.Context) error {
	if f.cfg.TurnOff == TurnOffNone {
		return nil
	}
	if !f.Connected() {
		return nil
	}
	err := f.action(ctx, string(f.cfg.TurnOff), nil)

	f.mu.Lock()
	if f.connected {
		f.state = StateUnknown
	}
	f.mu.Unlock()
	f.notifyChange()
	return err
}
