package backend

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mythtv_control/internal/mythtv"
)

const (
	// DefaultTimeout bounds each backend request
	DefaultTimeout = 2 * time.Second
	// DefaultDiscoveryInterval is how often online frontends are re-queried
	DefaultDiscoveryInterval = 60 * time.Second
)

// Backend is the central MythTV server. It owns the index of known
// frontends and answers artwork and tuner queries for them.
type Backend struct {
	client *mythtv.Client

	mu       sync.Mutex
	index    map[string]*Record
	announce Announcer

	timerMu      sync.Mutex
	refreshTimer *time.Timer
	interval     time.Duration
	stopped      bool
	refreshing   atomic.Bool
}

// New creates a backend for host:port. A zero port uses 6544.
func New(host string, port int) *Backend {
	if port == 0 {
		port = mythtv.DefaultBackendPort
	}
	return NewWithClient(mythtv.NewClient(host, port, DefaultTimeout))
}

// NewWithClient wraps an existing API client
func NewWithClient(client *mythtv.Client) *Backend {
	return &Backend{
		client: client,
		index:  make(map[string]*Record),
	}
}

// Client returns the underlying API client
func (b *Backend) Client() *mythtv.Client {
	return b.client
}

// ========== Artwork ==========

type artworkHolder struct {
	Artwork struct {
		ArtworkInfos []struct {
			URL          string `json:"URL"`
			StorageGroup string `json:"StorageGroup"`
			Type         string `json:"Type"`
		} `json:"ArtworkInfos"`
	} `json:"Artwork"`
}

// ArtworkFor picks the lookup matching the frontend status: videos by file
// name, everything else as a recording by start time and channel.
func (b *Backend) ArtworkFor(ctx context.Context, status map[string]string) string {
	if status["state"] == "WatchingVideo" {
		return b.VideoArtwork(ctx, status["pathname"])
	}
	return b.RecordingArtwork(ctx, strings.TrimSuffix(status["starttime"], "Z"), status["chanid"])
}

// VideoArtwork looks up artwork for a video by the base name of its path
func (b *Backend) VideoArtwork(ctx context.Context, pathname string) string {
	filename := pathname[strings.LastIndex(pathname, "/")+1:]
	if filename == "" {
		return ""
	}
	mythtv.Debugf("MythTV: Getting media image for video %s", filename)

	resp, err := b.client.Get(ctx, "Video/GetVideoByFileName", url.Values{"FileName": {filename}})
	if err != nil {
		mythtv.Debugf("MythTV: Video artwork lookup failed: %v", err)
		return ""
	}
	return b.artworkURL(resp, "VideoMetadataInfo")
}

// RecordingArtwork looks up artwork for a recording
func (b *Backend) RecordingArtwork(ctx context.Context, startTime, channelID string) string {
	if startTime == "" || channelID == "" {
		return ""
	}
	mythtv.Debugf("MythTV: Getting media image for %s on %s", startTime, channelID)

	resp, err := b.client.Get(ctx, "Dvr/GetRecorded", url.Values{
		"StartTime": {startTime},
		"ChanId":    {channelID},
	})
	if err != nil {
		mythtv.Debugf("MythTV: Recording artwork lookup failed: %v", err)
		return ""
	}
	return b.artworkURL(resp, "Program")
}

func (b *Backend) artworkURL(resp mythtv.Response, key string) string {
	var holder artworkHolder
	found, err := resp.Decode(key, &holder)
	if err != nil || !found {
		return ""
	}
	infos := holder.Artwork.ArtworkInfos
	if len(infos) == 0 || infos[0].URL == "" {
		return ""
	}
	part := infos[0].URL
	if strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://") {
		return part
	}
	mythtv.Debugf("MythTV: Found artwork: %s", part)
	return b.client.BaseURL() + "/" + strings.TrimPrefix(part, "/")
}

func logf(format string, args ...interface{}) {
	log.Printf("Discovery: "+format, args...)
}
