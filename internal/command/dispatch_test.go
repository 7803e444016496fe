package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type recorder struct {
	last  string
	value float64
	mute  bool
}

func (r *recorder) record(name string) error { r.last = name; return nil }

func (r *recorder) Play(context.Context) error       { return r.record("Play") }
func (r *recorder) Pause(context.Context) error      { return r.record("Pause") }
func (r *recorder) PlayPause(context.Context) error  { return r.record("PlayPause") }
func (r *recorder) Next(context.Context) error       { return r.record("Next") }
func (r *recorder) Previous(context.Context) error   { return r.record("Previous") }
func (r *recorder) VolumeUp(context.Context) error   { return r.record("VolumeUp") }
func (r *recorder) VolumeDown(context.Context) error { return r.record("VolumeDown") }
func (r *recorder) Stop(context.Context) error       { return r.record("Stop") }
func (r *recorder) TurnOn(context.Context) error     { return r.record("TurnOn") }
func (r *recorder) TurnOff(context.Context) error    { return r.record("TurnOff") }

func (r *recorder) SetVolumeLevel(_ context.Context, level float64) error {
	r.value = level
	return r.record("SetVolumeLevel")
}

func (r *recorder) Mute(_ context.Context, mute bool) error {
	r.mute = mute
	return r.record("Mute")
}

func (r *recorder) Seek(_ context.Context, position float64) error {
	r.value = position
	return r.record("Seek")
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		command string
		value   float64
		want    string
	}{
		{"play", 0, "Play"},
		{"pause", 0, "Pause"},
		{"play_pause", 0, "PlayPause"},
		{"next", 0, "Next"},
		{"previous", 0, "Previous"},
		{"volume_up", 0, "VolumeUp"},
		{"volume_down", 0, "VolumeDown"},
		{"volume_set", 0.4, "SetVolumeLevel"},
		{"mute", 1, "Mute"},
		{"seek", 90, "Seek"},
		{"stop", 0, "Stop"},
		{"turn_on", 0, "TurnOn"},
		{"turn_off", 0, "TurnOff"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			r := &recorder{}
			if err := Dispatch(context.Background(), r, tt.command, tt.value); err != nil {
				t.Fatalf("Dispatch returned error: %v", err)
			}
			if r.last != tt.want {
				t.Fatalf("called %q, want %q", r.last, tt.want)
			}
		})
	}
	if got := len(Names()); got != len(tests) {
		t.Fatalf("Names() has %d entries, want %d", got, len(tests))
	}
}

func TestDispatch_Values(t *testing.T) {
	r := &recorder{}
	Dispatch(context.Background(), r, "volume_set", 0.25)
	if r.value != 0.25 {
		t.Fatalf("volume level = %v, want 0.25", r.value)
	}

	Dispatch(context.Background(), r, "mute", 1)
	if !r.mute {
		t.Fatal("mute 1 did not mute")
	}
	Dispatch(context.Background(), r, "mute", 0)
	if r.mute {
		t.Fatal("mute 0 did not unmute")
	}
}

func TestDispatch_Unknown(t *testing.T) {
	err := Dispatch(context.Background(), &recorder{}, "rewind", 0)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestDispatch_PropagatesError(t *testing.T) {
	boom := fmt.Errorf("boom")
	p := &failing{recorder: &recorder{}, err: boom}
	if err := Dispatch(context.Background(), p, "play", 0); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
}

type failing struct {
	*recorder
	err error
}

func (f *failing) Play(context.Context) error { return f.err }
