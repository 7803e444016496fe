package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// run executes mythctl with fresh global flag values
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	frontendAddr, backendAddr, jsonOut, verbose = "", "", false, false
	timeout = 2 * time.Second

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

type fakeMyth struct {
	mu    sync.Mutex
	forms []map[string]string
}

func (f *fakeMyth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/Frontend/GetStatus":
		w.Write([]byte(`{"FrontendStatus":{"State":{"state":"WatchingRecording","title":"News","subtitle":"Late","playspeed":"1","volume":"40","mute":"0","secondsplayed":"65","totalseconds":"3600"}}}`))
	case "/Frontend/SendAction", "/Frontend/SendNotification":
		r.ParseForm()
		form := map[string]string{"path": r.URL.Path}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.forms = append(f.forms, form)
		f.mu.Unlock()
		w.Write([]byte(`{"bool":"true"}`))
	case "/Myth/GetFrontends":
		w.Write([]byte(`{"FrontendList":{"Frontends":[{"Name":"den","IP":"10.0.0.5","Port":"6547"}]}}`))
	case "/Dvr/GetEncoderList":
		w.Write([]byte(`{"EncoderList":{"Encoders":[{"Id":"1","HostName":"be","Connected":"true","Inputs":[{"DisplayName":"HDHR"}]}]}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeMyth) last() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forms) == 0 {
		return nil
	}
	return f.forms[len(f.forms)-1]
}

func newFake(t *testing.T) (*fakeMyth, string) {
	t.Helper()
	fake := &fakeMyth{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, strings.TrimPrefix(server.URL, "http://")
}

func TestStatus_JSON(t *testing.T) {
	_, addr := newFake(t)

	out, err := run(t, "status", "--frontend", addr, "--json")
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	var state map[string]interface{}
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if state["state"] != "playing" {
		t.Fatalf("state = %v, want playing", state["state"])
	}
	if state["media_title"] != "News - Late" {
		t.Fatalf("media_title = %v, want News - Late", state["media_title"])
	}
}

func TestStatus_Table(t *testing.T) {
	_, addr := newFake(t)

	out, err := run(t, "status", "--frontend", addr)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	for _, want := range []string{"playing", "News - Late", "1:05 / 1:00:00", "40%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAction_CommandAndRaw(t *testing.T) {
	fake, addr := newFake(t)

	if _, err := run(t, "action", "volume_set", "0.25", "--frontend", addr); err != nil {
		t.Fatalf("action returned error: %v", err)
	}
	if got := fake.last(); got["Action"] != "SETVOLUME" || got["Value"] != "25" {
		t.Fatalf("last action = %v, want SETVOLUME 25", got)
	}

	if _, err := run(t, "action", "menu", "--frontend", addr); err != nil {
		t.Fatalf("raw action returned error: %v", err)
	}
	if got := fake.last(); got["Action"] != "MENU" {
		t.Fatalf("last action = %v, want MENU", got)
	}

	if _, err := run(t, "action", "seek", "abc", "--frontend", addr); err == nil {
		t.Fatal("action accepted a non-numeric value")
	}
}

func TestNotify(t *testing.T) {
	fake, addr := newFake(t)

	if _, err := run(t, "notify", "Dinner", "is", "ready", "--title", "Kitchen", "--frontend", addr); err != nil {
		t.Fatalf("notify returned error: %v", err)
	}
	got := fake.last()
	if got["path"] != "/Frontend/SendNotification" || got["Message"] != "Kitchen" || got["Description"] != "Dinner is ready" {
		t.Fatalf("notification = %v", got)
	}
}

func TestFrontendsAndTuners(t *testing.T) {
	_, addr := newFake(t)

	out, err := run(t, "frontends", "--backend", addr)
	if err != nil {
		t.Fatalf("frontends returned error: %v", err)
	}
	if !strings.Contains(out, "den") || !strings.Contains(out, "10.0.0.5") {
		t.Fatalf("frontends output:\n%s", out)
	}

	out, err = run(t, "tuners", "--backend", addr, "--json")
	if err != nil {
		t.Fatalf("tuners returned error: %v", err)
	}
	var tuners []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &tuners); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if len(tuners) != 1 || tuners[0]["name"] != "HDHR" || tuners[0]["connected"] != true {
		t.Fatalf("tuners = %v", tuners)
	}
}

func TestMissingAddress(t *testing.T) {
	if _, err := run(t, "status"); err == nil {
		t.Fatal("status without --frontend returned nil error")
	}
	if _, err := run(t, "tuners"); err == nil {
		t.Fatal("tuners without --backend returned nil error")
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		in       string
		host     string
		port     int
		hasError bool
	}{
		{"den.lan", "den.lan", 6547, false},
		{"den.lan:6548", "den.lan", 6548, false},
		{"[::1]:6547", "::1", 6547, false},
		{"den:0", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		host, port, err := splitAddr(tt.in, 6547)
		if (err != nil) != tt.hasError {
			t.Fatalf("splitAddr(%q) error = %v, want error %v", tt.in, err, tt.hasError)
		}
		if err == nil && (host != tt.host || port != tt.port) {
			t.Fatalf("splitAddr(%q) = (%q, %d), want (%q, %d)", tt.in, host, port, tt.host, tt.port)
		}
	}
}
