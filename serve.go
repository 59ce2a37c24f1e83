package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parleychat/parley/activation"
	"github.com/parleychat/parley/api"
	"github.com/parleychat/parley/logger"
	"github.com/parleychat/parley/message"
	"github.com/parleychat/parley/middleware"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/settings"
	"github.com/parleychat/parley/user"
	"github.com/parleychat/parley/ws"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr    string
	serveDataDir string
	serveDev     bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Long: `Run the chat server: HTTP login plus the JSON-RPC WebSocket API.

State lives under --data-dir: settings.json declares the user accounts and
tuning, server.log collects logs. Edits to settings.json are picked up
without a restart.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", defaultAddr(), "listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", defaultDataDir(), "directory for settings.json and server.log")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "development mode: log to stdout")
}

func defaultAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".parley")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Config{DataDir: serveDataDir, DevMode: serveDev})

	settingsStore, err := settings.NewStore(serveDataDir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	registry := user.NewRegistry(settingsStore.Get().Users)
	settingsStore.AddOnChangeListener(registry)

	if err := settingsStore.StartWatching(); err != nil {
		slog.Warn("settings hot reload unavailable", "error", err)
	} else {
		defer settingsStore.StopWatching()
	}

	if len(settingsStore.Get().Users) == 0 {
		slog.Warn("no users configured, logins will fail",
			"path", filepath.Join(serveDataDir, "settings.json"))
	}

	sessions := session.NewMemoryStore()
	messages := message.NewMemoryStore()

	sweeper := activation.NewSweeper(sessions, settingsStore)
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:    serveAddr,
		Handler: newHandler(serveDev, registry, sessions, messages, settingsStore),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", serveAddr, "version", version, "dataDir", serveDataDir)
		errCh <- srv.ListenAndServe()
	}()

	if term.IsTerminal(int(os.Stdout.Fd())) {
		printConnectQR(serveAddr)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		// Open WebSockets don't drain on their own; close them hard.
		slog.Warn("graceful shutdown incomplete, closing remaining connections", "error", err)
		return srv.Close()
	}
	return nil
}

// printConnectQR renders the server's best-guess base URL as a QR code so
// phones on the same network can find it without typing.
func printConnectQR(addr string) {
	url := guessBaseURL(addr)
	fmt.Printf("\n%s\n\n", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
	fmt.Println()
}

// guessBaseURL resolves the listen address to something reachable from
// another machine: an explicit host wins, a wildcard gets the outbound
// interface address.
func guessBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = outboundIP()
	}
	return "http://" + net.JoinHostPort(host, port)
}

// outboundIP finds the local address the kernel would pick for egress. UDP
// connect assigns the route without sending anything.
func outboundIP() string {
	conn, err := net.Dial("udp", "203.0.113.1:9")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// newHandler assembles the HTTP routes. Split out so tests can drive the
// full stack through httptest.
func newHandler(devMode bool, registry *user.Registry, sessions session.Store, messages message.Store, settingsStore *settings.Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	api.NewAuthHandler(registry).Register(mux)

	// WebSocket endpoint (handles its own auth as the first RPC request)
	mux.Handle("GET /ws", ws.NewRPCHandler(version, devMode, registry, sessions, messages, settingsStore))

	return middleware.Auth(registry)(mux)
}
