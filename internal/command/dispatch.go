// Package command maps media player command names onto frontend calls. The
// HTTP API, the MQTT bridge and the CLI share this table.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownCommand is returned for names outside the command table
var ErrUnknownCommand = errors.New("unknown command")

// Player is the media player surface of a frontend entity
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	PlayPause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	SetVolumeLevel(ctx context.Context, level float64) error
	Mute(ctx context.Context, mute bool) error
	Seek(ctx context.Context, position float64) error
	Stop(ctx context.Context) error
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

type handler func(ctx context.Context, p Player, value float64) error

var handlers = map[string]handler{
	"play":        func(ctx context.Context, p Player, _ float64) error { return p.Play(ctx) },
	"pause":       func(ctx context.Context, p Player, _ float64) error { return p.Pause(ctx) },
	"play_pause":  func(ctx context.Context, p Player, _ float64) error { return p.PlayPause(ctx) },
	"next":        func(ctx context.Context, p Player, _ float64) error { return p.Next(ctx) },
	"previous":    func(ctx context.Context, p Player, _ float64) error { return p.Previous(ctx) },
	"volume_up":   func(ctx context.Context, p Player, _ float64) error { return p.VolumeUp(ctx) },
	"volume_down": func(ctx context.Context, p Player, _ float64) error { return p.VolumeDown(ctx) },
	"volume_set":  func(ctx context.Context, p Player, v float64) error { return p.SetVolumeLevel(ctx, v) },
	"mute":        func(ctx context.Context, p Player, v float64) error { return p.Mute(ctx, v != 0) },
	"seek":        func(ctx context.Context, p Player, v float64) error { return p.Seek(ctx, v) },
	"stop":        func(ctx context.Context, p Player, _ float64) error { return p.Stop(ctx) },
	"turn_on":     func(ctx context.Context, p Player, _ float64) error { return p.TurnOn(ctx) },
	"turn_off":    func(ctx context.Context, p Player, _ float64) error { return p.TurnOff(ctx) },
}

// Dispatch runs the named command. value is the volume level for
// volume_set, seconds for seek and non-zero-means-mute for mute; other
// commands ignore it.
func Dispatch(ctx context.Context, p Player, name string, value float64) error {
	h, ok := handlers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return h(ctx, p, value)
}

// Names lists the known commands in order
func Names() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
