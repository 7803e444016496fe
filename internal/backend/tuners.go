package backend

import (
	"context"
	"errors"
	"fmt"

	"mythtv_control/internal/mythtv"
)

// ErrNoData is returned when the backend reply lacks the expected payload
// or does not mention the requested item
var ErrNoData = errors.New("no data")

// Tuner is one tuner input and the connectivity of its encoder
type Tuner struct {
	Name      string `json:"name"`
	Encoder   int    `json:"encoder"`
	Host      string `json:"host,omitempty"`
	Connected bool   `json:"connected"`
}

type encoderList struct {
	Encoders []struct {
		ID        mythtv.FlexString `json:"Id"`
		HostName  string            `json:"HostName"`
		Connected mythtv.FlexString `json:"Connected"`
		Inputs    []struct {
			InputName   string `json:"InputName"`
			DisplayName string `json:"DisplayName"`
		} `json:"Inputs"`
	} `json:"Encoders"`
}

// Tuners lists every tuner input on the backend. Encoders without inputs
// are listed as "Encoder <Id>".
func (b *Backend) Tuners(ctx context.Context) ([]Tuner, error) {
	resp, err := b.client.Get(ctx, "Dvr/GetEncoderList", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoders: %w", err)
	}

	var list encoderList
	found, err := resp.Decode("EncoderList", &list)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoData
	}

	var tuners []Tuner
	for _, enc := range list.Encoders {
		base := Tuner{
			Encoder:   enc.ID.Int(),
			Host:      enc.HostName,
			Connected: enc.Connected.Bool(),
		}
		if len(enc.Inputs) == 0 {
			base.Name = "Encoder " + enc.ID.String()
			tuners = append(tuners, base)
			continue
		}
		for _, in := range enc.Inputs {
			t := base
			switch {
			case in.DisplayName != "":
				t.Name = in.DisplayName
			case in.InputName != "":
				t.Name = in.InputName
			default:
				t.Name = "Encoder " + enc.ID.String()
			}
			tuners = append(tuners, t)
		}
	}
	return tuners, nil
}

// GetTuners returns the tuner names
func (b *Backend) GetTuners(ctx context.Context) ([]string, error) {
	tuners, err := b.Tuners(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tuners))
	for _, t := range tuners {
		names = append(names, t.Name)
	}
	return names, nil
}

// GetTunerConnectivity reports whether the encoder behind the named tuner
// is connected
func (b *Backend) GetTunerConnectivity(ctx context.Context, name string) (bool, error) {
	tuners, err := b.Tuners(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tuners {
		if t.Name == name {
			return t.Connected, nil
		}
	}
	return false, fmt.Errorf("tuner %q: %w", name, ErrNoData)
}
