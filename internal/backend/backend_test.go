package backend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"mythtv_control/internal/frontend"
	"mythtv_control/internal/mythtv"
)

// fakeServer serves canned replies keyed by endpoint path
type fakeServer struct {
	mu      sync.Mutex
	replies map[string]string
	queries map[string]url.Values
}

func (s *fakeServer) set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = body
}

func (s *fakeServer) query(path string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[path]
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.replies[r.URL.Path]
	s.queries[r.URL.Path] = r.URL.Query()
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func newTestBackend(t *testing.T) (*Backend, *fakeServer) {
	t.Helper()
	fake := &fakeServer{replies: map[string]string{}, queries: map[string]url.Values{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	u, _ := url.Parse(server.URL)
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return New(host, port), fake
}

type fakeConnector struct {
	mu    sync.Mutex
	calls []bool
}

func (c *fakeConnector) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, connected)
}

func (c *fakeConnector) history() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.calls...)
}

const twoFrontends = `{"FrontendList":{"Frontends":[
	{"Name":"livingroom","IP":"192.168.1.20","Port":"6547","OnLine":"true"},
	{"Name":"bedroom","IP":"192.168.1.21","Port":6547,"OnLine":true}]}}`

func TestVideoArtwork_UsesBaseName(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Video/GetVideoByFileName", `{"VideoMetadataInfo":{"Artwork":{"ArtworkInfos":[
		{"URL":"/Content/GetImageFile?StorageGroup=Coverart&FileName=movie.jpg","Type":"coverart"}]}}}`)

	got := b.ArtworkFor(context.Background(), map[string]string{
		"state":    "WatchingVideo",
		"pathname": "/videos/movies/movie.mp4",
	})

	want := b.Client().BaseURL() + "/Content/GetImageFile?StorageGroup=Coverart&FileName=movie.jpg"
	if got != want {
		t.Fatalf("ArtworkFor = %q, want %q", got, want)
	}
	if name := fake.query("/Video/GetVideoByFileName").Get("FileName"); name != "movie.mp4" {
		t.Fatalf("FileName = %q, want movie.mp4", name)
	}
}

func TestRecordingArtwork_StripsZone(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Dvr/GetRecorded", `{"Program":{"Artwork":{"ArtworkInfos":[{"URL":"/Content/GetImageFile?FileName=x.png"}]}}}`)

	got := b.ArtworkFor(context.Background(), map[string]string{
		"state":     "WatchingRecording",
		"starttime": "2024-01-01T20:00:00Z",
		"chanid":    "1051",
	})
	if got == "" {
		t.Fatal("ArtworkFor returned no image")
	}

	q := fake.query("/Dvr/GetRecorded")
	if q.Get("StartTime") != "2024-01-01T20:00:00" {
		t.Fatalf("StartTime = %q, want 2024-01-01T20:00:00", q.Get("StartTime"))
	}
	if q.Get("ChanId") != "1051" {
		t.Fatalf("ChanId = %q, want 1051", q.Get("ChanId"))
	}
}

func TestArtwork_MissingDataIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no payload key", `{"Other":{}}`},
		{"empty list", `{"VideoMetadataInfo":{"Artwork":{"ArtworkInfos":[]}}}`},
		{"no artwork", `{"VideoMetadataInfo":{"Title":"Movie"}}`},
		{"abort", `{"Abort":"no such video"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, fake := newTestBackend(t)
			fake.set("/Video/GetVideoByFileName", tt.body)
			if got := b.VideoArtwork(context.Background(), "/videos/movie.mp4"); got != "" {
				t.Fatalf("VideoArtwork = %q, want empty", got)
			}
		})
	}

	b, _ := newTestBackend(t)
	if got := b.VideoArtwork(context.Background(), "/videos/"); got != "" {
		t.Fatalf("VideoArtwork for directory = %q, want empty", got)
	}
}

func TestGetFrontends(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[
		{"Name":"livingroom","IP":"192.168.1.20","Port":"6547","OnLine":"1"},
		{"Name":"garage","IP":"192.168.1.30","Port":"6547","OnLine":"false"}]}}`)

	got, err := b.GetFrontends(context.Background())
	if err != nil {
		t.Fatalf("GetFrontends returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetFrontends returned %d frontends, want 1", len(got))
	}
	want := FrontendInfo{Name: "livingroom", IP: "192.168.1.20", Port: 6547}
	if got[0] != want {
		t.Fatalf("frontend = %+v, want %+v", got[0], want)
	}
	if fake.query("/Myth/GetFrontends").Get("OnLine") != "true" {
		t.Fatal("OnLine=true not requested")
	}
}

func TestReconcile_AnnouncesNewFrontendsOnce(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", twoFrontends)

	var announced []string
	b.OnDiscovered(func(info FrontendInfo) Connector {
		announced = append(announced, info.Name)
		return &fakeConnector{}
	})

	for i := 0; i < 2; i++ {
		if err := b.Reconcile(context.Background()); err != nil {
			t.Fatalf("Reconcile returned error: %v", err)
		}
	}

	if len(announced) != 2 || announced[0] != "bedroom" || announced[1] != "livingroom" {
		t.Fatalf("announced = %v, want [bedroom livingroom]", announced)
	}
	records := b.Frontends()
	if len(records) != 2 {
		t.Fatalf("index has %d records, want 2", len(records))
	}
	for _, rec := range records {
		if !rec.Connected {
			t.Fatalf("record %s not connected", rec.Info.Name)
		}
	}
}

func TestReconcile_TogglesConnectivity(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", twoFrontends)

	living := &fakeConnector{}
	b.Register("livingroom", "192.168.1.20", living)

	if err := b.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if calls := living.history(); len(calls) != 0 {
		t.Fatalf("SetConnected called %v while already connected", calls)
	}

	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[{"Name":"bedroom","IP":"192.168.1.21","Port":"6547"}]}}`)
	b.Reconcile(context.Background())
	b.Reconcile(context.Background())

	fake.set("/Myth/GetFrontends", twoFrontends)
	b.Reconcile(context.Background())

	calls := living.history()
	if len(calls) != 2 || calls[0] || !calls[1] {
		t.Fatalf("SetConnected calls = %v, want [false true]", calls)
	}
	if rec, _ := b.Lookup("livingroom"); rec.Info.IP != "192.168.1.20" {
		t.Fatalf("record IP = %q, want refreshed from discovery", rec.Info.IP)
	}
}

func TestReconcile_QueryFailureKeepsIndex(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", twoFrontends)
	b.Reconcile(context.Background())

	fake.set("/Myth/GetFrontends", `{"Abort":"database down"}`)
	if err := b.Reconcile(context.Background()); err == nil {
		t.Fatal("Reconcile returned nil error for Abort reply")
	}

	for _, rec := range b.Frontends() {
		if !rec.Connected {
			t.Fatalf("record %s marked disconnected after failed query", rec.Info.Name)
		}
	}
}

func TestReconcile_DisconnectedFrontendIsOff(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[{"Name":"livingroom","IP":"127.0.0.1","Port":"1"}]}}`)

	fe := frontend.New(frontend.Config{Name: "livingroom", Host: "127.0.0.1", Port: 1}, nil)
	b.Register("livingroom", "127.0.0.1", fe)
	b.Reconcile(context.Background())

	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[]}}`)
	b.Reconcile(context.Background())

	if got := fe.State(); got != frontend.StateOff {
		t.Fatalf("State = %v, want off", got)
	}
	if fe.Connected() {
		t.Fatal("frontend still connected")
	}
	if fe.Volume().Controllable {
		t.Fatal("volume still controllable")
	}
}

func TestReconcile_StaticFrontendMatchedByIP(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[{"Name":"mythfe","IP":"192.168.1.20","Port":"6547"}]}}`)

	static := &fakeConnector{}
	b.Register("192.168.1.20", "192.168.1.20", static)
	announced := 0
	b.OnDiscovered(func(info FrontendInfo) Connector {
		announced++
		return &fakeConnector{}
	})

	for i := 0; i < 2; i++ {
		if err := b.Reconcile(context.Background()); err != nil {
			t.Fatalf("Reconcile returned error: %v", err)
		}
	}

	if announced != 0 {
		t.Fatalf("announced %d frontends, want 0 for a configured IP", announced)
	}
	if calls := static.history(); len(calls) != 0 {
		t.Fatalf("SetConnected calls = %v, want none", calls)
	}
	records := b.Frontends()
	if len(records) != 1 {
		t.Fatalf("index has %d records, want 1", len(records))
	}
	rec := records[0]
	if !rec.Connected || rec.Hostname != "mythfe" || rec.Info.Name != "192.168.1.20" {
		t.Fatalf("record = %+v, want connected 192.168.1.20 aliased to mythfe", rec)
	}

	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[]}}`)
	b.Reconcile(context.Background())
	if calls := static.history(); len(calls) != 1 || calls[0] {
		t.Fatalf("SetConnected calls = %v, want [false] once it leaves the list", calls)
	}
}

func TestReconcile_StaticFrontendMatchedByHostLabel(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", `{"FrontendList":{"Frontends":[{"Name":"den","IP":"192.168.1.40","Port":"6547"}]}}`)

	static := &fakeConnector{}
	b.Register("Den", "den.lan", static)
	b.OnDiscovered(func(info FrontendInfo) Connector {
		t.Fatalf("announced %s, want it matched to the configured host", info.Name)
		return nil
	})

	b.Reconcile(context.Background())
	rec, ok := b.Lookup("Den")
	if !ok || !rec.Seen || rec.Info.IP != "192.168.1.40" {
		t.Fatalf("record = %+v, want seen at 192.168.1.40", rec)
	}
}

func TestReconcile_UnmatchedStaticFrontendStaysConnected(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", twoFrontends)

	static := &fakeConnector{}
	b.Register("kitchen", "kitchen-box.example", static)
	b.Reconcile(context.Background())
	b.Reconcile(context.Background())

	if calls := static.history(); len(calls) != 0 {
		t.Fatalf("SetConnected calls = %v, want none for a frontend discovery never listed", calls)
	}
	if rec, _ := b.Lookup("kitchen"); !rec.Connected {
		t.Fatal("kitchen marked disconnected")
	}
}

func TestStartStop(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Myth/GetFrontends", twoFrontends)

	found := make(chan string, 4)
	b.OnDiscovered(func(info FrontendInfo) Connector {
		found <- info.Name
		return nil
	})

	b.Start(time.Hour)
	defer b.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-found:
		case <-time.After(2 * time.Second):
			t.Fatal("discovery did not run on Start")
		}
	}
}

func TestTuners_Flatten(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Dvr/GetEncoderList", `{"EncoderList":{"Encoders":[
		{"Id":"1","HostName":"backend","Connected":"true","Inputs":[
			{"InputName":"MPEG2TS","DisplayName":"HDHomeRun 1"},
			{"InputName":"DVBInput","DisplayName":""}]},
		{"Id":2,"HostName":"backend","Connected":false,"Inputs":[]}]}}`)

	names, err := b.GetTuners(context.Background())
	if err != nil {
		t.Fatalf("GetTuners returned error: %v", err)
	}
	want := []string{"HDHomeRun 1", "DVBInput", "Encoder 2"}
	if len(names) != len(want) {
		t.Fatalf("GetTuners = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("GetTuners[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	connected, err := b.GetTunerConnectivity(context.Background(), "HDHomeRun 1")
	if err != nil || !connected {
		t.Fatalf("GetTunerConnectivity(HDHomeRun 1) = (%v, %v), want (true, nil)", connected, err)
	}
	connected, err = b.GetTunerConnectivity(context.Background(), "Encoder 2")
	if err != nil || connected {
		t.Fatalf("GetTunerConnectivity(Encoder 2) = (%v, %v), want (false, nil)", connected, err)
	}
	if _, err := b.GetTunerConnectivity(context.Background(), "missing"); !errors.Is(err, ErrNoData) {
		t.Fatalf("unknown tuner error = %v, want ErrNoData", err)
	}
}

func TestTuners_MissingPayload(t *testing.T) {
	b, fake := newTestBackend(t)
	fake.set("/Dvr/GetEncoderList", `{"Something":{}}`)

	if _, err := b.GetTuners(context.Background()); !errors.Is(err, ErrNoData) {
		t.Fatalf("GetTuners error = %v, want ErrNoData", err)
	}
	if _, err := b.GetTunerConnectivity(context.Background(), "x"); !errors.Is(err, ErrNoData) {
		t.Fatalf("GetTunerConnectivity error = %v, want ErrNoData", err)
	}
}

func TestTuners_TransportError(t *testing.T) {
	b := New("127.0.0.1", 1)
	if _, err := b.GetTuners(context.Background()); !mythtv.IsTransport(err) {
		t.Fatalf("GetTuners error = %v, want transport error", err)
	}
}
