package backend

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"mythtv_control/internal/mythtv"
)

// FrontendInfo is one entry of Myth/GetFrontends
type FrontendInfo struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Connector is an entity whose connectivity follows discovery
type Connector interface {
	SetConnected(connected bool)
}

// Announcer is called once for every newly seen frontend. It may return
// the entity created for it, or nil to only track connectivity.
type Announcer func(info FrontendInfo) Connector

// Record is the index entry for one frontend. A static record keeps its
// configured name as key; Hostname holds the name discovery reports for it.
type Record struct {
	Info      FrontendInfo `json:"info"`
	Host      string       `json:"host,omitempty"`
	Hostname  string       `json:"hostname,omitempty"`
	Connected bool         `json:"connected"`
	Static    bool         `json:"static"`
	Seen      bool         `json:"seen"`
	Entity    Connector    `json:"-"`
}

// matches reports whether a discovery entry names the same machine as a
// static record: same IP, or a host whose first label is the hostname.
func (r *Record) matches(fe FrontendInfo) bool {
	if !r.Static || r.Host == "" {
		return false
	}
	if fe.IP != "" && (fe.IP == r.Host || fe.IP == r.Info.IP) {
		return true
	}
	label, _, _ := strings.Cut(r.Host, ".")
	return strings.EqualFold(r.Host, fe.Name) || strings.EqualFold(label, fe.Name)
}

type frontendList struct {
	Frontends []struct {
		Name   string            `json:"Name"`
		IP     string            `json:"IP"`
		Port   mythtv.FlexString `json:"Port"`
		OnLine mythtv.FlexString `json:"OnLine"`
	} `json:"Frontends"`
}

// OnDiscovered sets the callback for newly seen frontends
func (b *Backend) OnDiscovered(fn Announcer) {
	b.mu.Lock()
	b.announce = fn
	b.mu.Unlock()
}

// Register adds a statically configured frontend to the index, so its
// connectivity is tracked like a discovered one. It starts connected and
// is only marked offline once discovery has reported it at least once.
func (b *Backend) Register(name, host string, entity Connector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.index[name]; ok {
		rec.Entity = entity
		rec.Static = true
		rec.Host = host
		return
	}
	b.index[name] = &Record{
		Info:      FrontendInfo{Name: name, IP: host},
		Host:      host,
		Connected: true,
		Static:    true,
		Entity:    entity,
	}
}

// lookupLocked finds the record a discovery entry belongs to. Callers hold b.mu.
func (b *Backend) lookupLocked(fe FrontendInfo) (string, bool) {
	if _, ok := b.index[fe.Name]; ok {
		return fe.Name, true
	}
	keys := make([]string, 0, len(b.index))
	for key := range b.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if b.index[key].matches(fe) {
			return key, true
		}
	}
	return "", false
}

// GetFrontends queries the backend for online frontends
func (b *Backend) GetFrontends(ctx context.Context) ([]FrontendInfo, error) {
	resp, err := b.client.Get(ctx, "Myth/GetFrontends", url.Values{"OnLine": {"true"}})
	if err != nil {
		return nil, fmt.Errorf("failed to get frontends: %w", err)
	}

	var list frontendList
	found, err := resp.Decode("FrontendList", &list)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("failed to get frontends: %w", ErrNoData)
	}

	out := make([]FrontendInfo, 0, len(list.Frontends))
	for _, fe := range list.Frontends {
		if fe.Name == "" {
			continue
		}
		if fe.OnLine != "" && !fe.OnLine.Bool() {
			continue
		}
		port := fe.Port.Int()
		if port == 0 {
			port = mythtv.DefaultFrontendPort
		}
		out = append(out, FrontendInfo{Name: fe.Name, IP: fe.IP, Port: port})
	}
	return out, nil
}

// Reconcile runs one discovery cycle: every known frontend's connectivity
// becomes "present in the reply", and unseen frontends are announced and
// indexed. Records are never removed. A failed query leaves the index as is.
func (b *Backend) Reconcile(ctx context.Context) error {
	frontends, err := b.GetFrontends(ctx)
	if err != nil {
		logf("Failed to query frontends: %v", err)
		return err
	}

	type transition struct {
		entity    Connector
		connected bool
	}
	var transitions []transition
	var fresh []FrontendInfo

	b.mu.Lock()
	present := make(map[string]FrontendInfo, len(frontends))
	queued := make(map[string]bool)
	for _, fe := range frontends {
		key, ok := b.lookupLocked(fe)
		if !ok {
			if !queued[fe.Name] {
				queued[fe.Name] = true
				fresh = append(fresh, fe)
			}
			continue
		}
		if _, dup := present[key]; !dup {
			present[key] = fe
		}
	}
	for key, rec := range b.index {
		info, ok := present[key]
		if ok {
			rec.Seen = true
			if rec.Static {
				rec.Info.IP, rec.Info.Port = info.IP, info.Port
				rec.Hostname = info.Name
			} else {
				rec.Info = info
			}
		} else if !rec.Seen {
			// never reported; the configured address may not be what the
			// backend lists, so leave it connected
			continue
		}
		if rec.Connected != ok {
			rec.Connected = ok
			logf("Frontend %s connected=%v", key, ok)
			if rec.Entity != nil {
				transitions = append(transitions, transition{rec.Entity, ok})
			}
		}
	}
	announce := b.announce
	b.mu.Unlock()

	// entity callbacks may poll the frontend, so they run outside the lock
	for _, t := range transitions {
		t.entity.SetConnected(t.connected)
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Name < fresh[j].Name })
	for _, info := range fresh {
		var entity Connector
		if announce != nil {
			entity = announce(info)
		}
		b.mu.Lock()
		if _, ok := b.lookupLocked(info); !ok {
			b.index[info.Name] = &Record{Info: info, Connected: true, Seen: true, Entity: entity}
			logf("Discovered frontend %s at %s:%d", info.Name, info.IP, info.Port)
		}
		b.mu.Unlock()
	}
	return nil
}

// Frontends returns a copy of the index sorted by name
func (b *Backend) Frontends() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, 0, len(b.index))
	for _, rec := range b.index {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info.Name < out[j].Info.Name })
	return out
}

// Lookup returns the index entry for name
func (b *Backend) Lookup(name string) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.index[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Start runs discovery now and then every interval until Stop
func (b *Backend) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	b.timerMu.Lock()
	b.interval = interval
	b.stopped = false
	b.timerMu.Unlock()

	go b.cycle()
}

// Stop cancels the periodic discovery timer
func (b *Backend) Stop() {
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	b.stopped = true
	if b.refreshTimer != nil {
		b.refreshTimer.Stop()
	}
}

func (b *Backend) cycle() {
	b.refresh()

	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	if b.stopped {
		return
	}
	b.refreshTimer = time.AfterFunc(b.interval, b.cycle)
}

// RequestRefresh runs one discovery cycle in the background. Requests made
// while a cycle is running are dropped.
func (b *Backend) RequestRefresh() {
	go b.refresh()
}

func (b *Backend) refresh() {
	if !b.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer b.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*b.client.Timeout())
	defer cancel()
	b.Reconcile(ctx)
}
