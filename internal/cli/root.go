package cli

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mythtv_control/internal/backend"
	"mythtv_control/internal/frontend"
	"mythtv_control/internal/mythtv"
)

var (
	frontendAddr string
	backendAddr  string
	timeout      time.Duration
	jsonOut      bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "mythctl",
	Short: "Control MythTV frontends from the command line",
	Long:  `mythctl talks to MythTV frontends and the backend over the Services API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		mythtv.Debug = mythtv.Debug || verbose
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&frontendAddr, "frontend", "f", os.Getenv("MYTHTV_FRONTEND"), "frontend host[:port]")
	rootCmd.PersistentFlags().StringVarP(&backendAddr, "backend", "b", os.Getenv("MYTHTV_BACKEND_HOST"), "backend host[:port]")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// splitAddr parses host[:port]
func splitAddr(addr string, fallback int) (string, int, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0, fmt.Errorf("no address given")
	}
	if !strings.Contains(addr, ":") {
		return addr, fallback, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}

func openBackend() (*backend.Backend, error) {
	if backendAddr == "" {
		return nil, fmt.Errorf("no backend given (use --backend or MYTHTV_BACKEND_HOST)")
	}
	host, port, err := splitAddr(backendAddr, mythtv.DefaultBackendPort)
	if err != nil {
		return nil, err
	}
	return backend.NewWithClient(mythtv.NewClient(host, port, timeout)), nil
}

// openFrontend builds a one-shot frontend entity. Artwork is resolved when
// a backend is also given.
func openFrontend() (*frontend.Frontend, error) {
	if frontendAddr == "" {
		return nil, fmt.Errorf("no frontend given (use --frontend or MYTHTV_FRONTEND)")
	}
	host, port, err := splitAddr(frontendAddr, mythtv.DefaultFrontendPort)
	if err != nil {
		return nil, err
	}

	cfg := frontend.Config{Name: host, Host: host, Port: port, Timeout: timeout}
	var be *backend.Backend
	if backendAddr != "" {
		if be, err = openBackend(); err != nil {
			return nil, err
		}
		cfg.ShowArtwork = true
	}

	f := frontend.New(cfg, nil)
	if be != nil {
		f.SetArtworkResolver(be)
	}
	return f, nil
}
