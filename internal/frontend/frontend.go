package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"mythtv_control/internal/mythtv"
	"mythtv_control/internal/wol"
)

const (
	endpointGetStatus  = "Frontend/GetStatus"
	endpointSendAction = "Frontend/SendAction"

	// DefaultName is used when no display name is configured
	DefaultName = "MythTV Frontend"
	// DefaultTimeout bounds each frontend request
	DefaultTimeout = time.Second
	// DefaultPollInterval is the status poll cadence of Run
	DefaultPollInterval = 10 * time.Second
)

// ErrDisconnected is returned by SendAction while the frontend is marked
// offline by discovery
var ErrDisconnected = errors.New("frontend disconnected")

// API is the subset of the Services API client a frontend needs
type API interface {
	Get(ctx context.Context, endpoint string, query url.Values) (mythtv.Response, error)
	Post(ctx context.Context, endpoint string, form url.Values) (mythtv.Response, error)
	Probe(ctx context.Context) bool
}

// ArtworkResolver finds the image URL for the media in a status payload.
// An empty string means no artwork.
type ArtworkResolver interface {
	ArtworkFor(ctx context.Context, status map[string]string) string
}

// Waker sends a wake signal to a MAC address
type Waker interface {
	Wake(mac string) error
}

// Config holds the per-frontend settings
type Config struct {
	Name          string
	Host          string
	Port          int
	MAC           string
	ShowArtwork   bool
	TurnOff       TurnOffAction
	Timeout       time.Duration
	FailurePolicy FailurePolicy
}

// VolumeState is only controllable while the last status carried a volume
type VolumeState struct {
	Controllable bool `json:"controllable"`
	Level        int  `json:"level"`
	Muted        bool `json:"muted"`
}

// Frontend is a media player entity backed by one MythTV frontend
type Frontend struct {
	cfg           Config
	api           API
	artwork       ArtworkResolver
	waker         Waker
	now           func() time.Time
	onChange      func(State)
	onUnreachable func()

	mu           sync.Mutex
	connected    bool
	status       DeviceStatus
	volume       VolumeState
	state        PlayerState
	imageURL     string
	lastTitle    string
	hasLastTitle bool
	positionAt   time.Time
	lastKey      string
}

// New creates a frontend entity. It starts out connected, as a statically
// configured or freshly discovered frontend is assumed online.
func New(cfg Config, api API) *Frontend {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Port == 0 {
		cfg.Port = mythtv.DefaultFrontendPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if turnOff, ok := ParseTurnOff(string(cfg.TurnOff)); ok {
		cfg.TurnOff = turnOff
	} else {
		log.Printf("MythTV: Ignoring unknown turn off action %q for '%s'", cfg.TurnOff, cfg.Name)
		cfg.TurnOff = TurnOffNone
	}
	if api == nil {
		api = mythtv.NewClient(cfg.Host, cfg.Port, cfg.Timeout)
	}
	return &Frontend{
		cfg:       cfg,
		api:       api,
		waker:     wol.NewSender(""),
		now:       time.Now,
		connected: true,
		status:    DeviceStatus{},
		state:     StateUnknown,
	}
}

// SetArtworkResolver sets where artwork lookups go (normally the backend)
func (f *Frontend) SetArtworkResolver(r ArtworkResolver) {
	f.artwork = r
}

// SetWaker replaces the Wake-on-LAN sender
func (f *Frontend) SetWaker(w Waker) {
	f.waker = w
}

// OnChange registers a listener called with a fresh snapshot whenever the
// reported state changes
func (f *Frontend) OnChange(fn func(State)) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// OnUnreachable registers a callback for transport failures, so the owner
// can re-check which frontends are online
func (f *Frontend) OnUnreachable(fn func()) {
	f.onUnreachable = fn
}

// API returns the client the frontend talks through
func (f *Frontend) API() API {
	return f.api
}

// Config returns the frontend settings
func (f *Frontend) Config() Config {
	return f.cfg
}

// SetConnected applies a connectivity transition reported by discovery
func (f *Frontend) SetConnected(connected bool) {
	f.mu.Lock()
	was := f.connected
	f.connected = connected
	if !connected {
		f.markOffLocked()
	}
	f.mu.Unlock()

	if connected && !was {
		log.Printf("MythTV: Frontend '%s' is online", f.cfg.Name)
		f.Poll(context.Background())
		return
	}
	if !connected && was {
		log.Printf("MythTV: Frontend '%s' went offline", f.cfg.Name)
	}
	f.notifyChange()
}

// Poll requests the frontend status and updates every derived field. It
// returns false when disconnected or when the request failed.
func (f *Frontend) Poll(ctx context.Context) bool {
	f.mu.Lock()
	connected := f.connected
	f.mu.Unlock()
	if !connected {
		return false
	}

	resp, err := f.api.Get(ctx, endpointGetStatus, nil)
	if err == nil {
		var status DeviceStatus
		status, err = parseStatus(resp)
		if err == nil {
			f.apply(ctx, status)
			return true
		}
	}

	f.fail(ctx, err)
	return false
}

func parseStatus(resp mythtv.Response) (DeviceStatus, error) {
	var fs struct {
		State json.RawMessage `json:"State"`
	}
	found, err := resp.Decode("FrontendStatus", &fs)
	if err != nil {
		return nil, &mythtv.APIError{Endpoint: endpointGetStatus, Kind: "Warning", Message: err.Error()}
	}
	if !found || len(fs.State) == 0 || string(fs.State) == "null" {
		return nil, &mythtv.APIError{Endpoint: endpointGetStatus, Kind: "Warning", Message: "missing FrontendStatus.State"}
	}
	fields, err := mythtv.Scalars(fs.State)
	if err != nil {
		return nil, &mythtv.APIError{Endpoint: endpointGetStatus, Kind: "Warning", Message: err.Error()}
	}
	return DeviceStatus(fields), nil
}

func (f *Frontend) apply(ctx context.Context, status DeviceStatus) {
	state := Normalize(status)

	f.mu.Lock()
	if !f.connected {
		// discovery marked it offline while the request was in flight
		f.mu.Unlock()
		return
	}
	f.status = status
	f.state = state
	f.positionAt = f.now()

	if v, ok := status["volume"]; ok {
		f.volume.Controllable = true
		f.volume.Level, _ = strconv.Atoi(v)
	} else {
		f.volume.Controllable = false
	}
	m, ok := status["mute"]
	f.volume.Muted = ok && m != "0" && m != "false"

	fetch := false
	title := ""
	if !state.Active() {
		f.imageURL = ""
		f.hasLastTitle = false
	} else if f.cfg.ShowArtwork {
		title = DisplayTitle(status)
		if !f.hasLastTitle || title != f.lastTitle {
			fetch = true
		}
		f.lastTitle = title
		f.hasLastTitle = true
	}
	f.mu.Unlock()

	if fetch && f.artwork != nil {
		image := f.artwork.ArtworkFor(ctx, status)
		f.mu.Lock()
		// drop the result if the frontend left playback while fetching
		if f.state.Active() && f.hasLastTitle && f.lastTitle == title {
			f.imageURL = image
		}
		f.mu.Unlock()
	}

	f.notifyChange()
}

func (f *Frontend) fail(ctx context.Context, err error) {
	state := ClassifyFailure(err, f.cfg.FailurePolicy, func() bool {
		return f.api.Probe(ctx)
	})

	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return
	}
	previous := f.state
	if state == StateOff {
		f.markOffLocked()
	} else {
		f.state = state
	}
	f.mu.Unlock()

	if previous != StateOff {
		log.Printf("MythTV: Error with '%s' - %v", f.cfg.Name, err)
	}
	if mythtv.IsTransport(err) && f.onUnreachable != nil {
		f.onUnreachable()
	}
	f.notifyChange()
}

// SendAction issues a Frontend/SendAction call and refreshes the status.
// A transport failure marks the frontend Off.
func (f *Frontend) SendAction(ctx context.Context, action string, value *int) (mythtv.Response, error) {
	f.mu.Lock()
	connected := f.connected
	f.mu.Unlock()
	if !connected {
		return nil, ErrDisconnected
	}

	form := url.Values{"Action": {action}}
	if value != nil {
		form.Set("Value", strconv.Itoa(*value))
	}

	mythtv.Debugf("MythTV: '%s' action %s", f.cfg.Name, action)
	result, err := f.api.Post(ctx, endpointSendAction, form)
	if err != nil {
		if mythtv.IsTransport(err) {
			f.mu.Lock()
			f.markOffLocked()
			f.mu.Unlock()
			f.notifyChange()
		}
		log.Printf("MythTV: Action %s on '%s' failed: %v", action, f.cfg.Name, err)
		return nil, err
	}

	f.Poll(ctx)
	return result, nil
}

// Run polls the frontend status at a fixed interval until ctx is done
func (f *Frontend) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pollCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout*2)
		f.Poll(pollCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// markOffLocked forces the Off state and clears everything tied to the
// media that was playing. Callers hold f.mu.
func (f *Frontend) markOffLocked() {
	f.state = StateOff
	f.volume.Controllable = false
	f.imageURL = ""
	f.hasLastTitle = false
}

func (f *Frontend) notifyChange() {
	snap := f.Snapshot()
	key := snap.changeKey()

	f.mu.Lock()
	fn := f.onChange
	changed := key != f.lastKey
	f.lastKey = key
	f.mu.Unlock()

	if fn != nil && changed {
		fn(snap)
	}
}
