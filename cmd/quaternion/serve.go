package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/platform/tui"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/transport/ws"
)

var (
	flagSSHAddr       string
	flagWSAddr        string
	flagRoomID        string
	flagHostKey       string
	flagIdleTimeout   int
	flagSnapshotEvery int
	flagMaxActions    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host a multiplayer room",
	Long: `Host one multiplayer room. Players join over SSH, where each session
gets the match HUD, or over a websocket speaking the JSON protocol.

Every SSH user name is a player id, so reconnecting resumes the same
player. Websocket clients name their player in the hello message.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.quaternion/host_key

Examples:
  quaternion serve                        # SSH on :23234
  quaternion serve --ssh "" --ws :8080    # Websocket only
  quaternion serve --ssh :2222 --ws :8080 --room friday

Users can connect with:
  ssh alice@localhost -p 23234`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", ":23234", "SSH server address (empty disables)")
	serveCmd.Flags().StringVar(&flagWSAddr, "ws", "", "Websocket server address (empty disables)")
	serveCmd.Flags().StringVar(&flagRoomID, "room", "lobby", "Room id")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 30, "Idle timeout in minutes before disconnecting")
	serveCmd.Flags().IntVar(&flagSnapshotEvery, "snapshot-every", 6, "Frames between snapshot broadcasts")
	serveCmd.Flags().IntVar(&flagMaxActions, "max-actions", 8, "Actions accepted per session per frame")
}

func runServe(_ *cobra.Command, _ []string) {
	logger := newLogger("quaternion", true)

	if flagSSHAddr == "" && flagWSAddr == "" {
		fmt.Fprintln(os.Stderr, "Error: enable at least one of --ssh and --ws")
		os.Exit(1)
	}
	cfg, err := matchConfig(core.ModeMultiplayer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tables, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading tables: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rcfg := room.DefaultConfig(cfg, tables)
	rcfg.FrameInterval = time.Second / time.Duration(flagFPS)
	rcfg.SnapshotEvery = flagSnapshotEvery
	rcfg.MaxActionsPerFrame = flagMaxActions

	opts := []room.Option{room.WithLogger(newLogger("room", true))}
	store := openStore(logger)
	if store != nil {
		defer store.Close()
		opts = append(opts, room.WithResultSaver(store))
	}
	r, err := room.New(ctx, rcfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating room: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	errc := make(chan error, 3)
	go func() {
		err := r.Run(ctx)
		if err == nil {
			logger.Info("match over, shutting down", "room", r.ID(), "match", r.MatchID())
		}
		stop()
		errc <- ignoreShutdown(err)
	}()
	pending := 1

	if flagSSHAddr != "" {
		sshCfg := tui.DefaultSSHServerConfig()
		sshCfg.Address = flagSSHAddr
		sshCfg.HostKeyPath = flagHostKey
		sshCfg.IdleTimeout = time.Duration(flagIdleTimeout) * time.Minute
		srv, err := tui.NewSSHServer(sshCfg, r, tables, newLogger("ssh", true))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating SSH server: %v\n", err)
			os.Exit(1)
		}
		go func() { errc <- srv.Serve(ctx) }()
		pending++
		fmt.Printf("Connect with: ssh <player>@localhost -p %s\n", portOf(flagSSHAddr))
	}

	if flagWSAddr != "" {
		httpSrv := &http.Server{
			Addr:              flagWSAddr,
			Handler:           ws.NewServer(r, newLogger("ws", true)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx) //nolint:errcheck // Best-effort shutdown
		}()
		go func() {
			err := httpSrv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errc <- err
		}()
		pending++
		fmt.Printf("Websocket endpoint: ws://localhost:%s/\n", portOf(flagWSAddr))
	}

	logger.Info("room open", "room", r.ID(), "match", r.MatchID(), "seed", cfg.Seed)
	fmt.Println("Press Ctrl+C to stop")

	var firstErr error
	for range pending {
		if err := <-errc; err != nil {
			if firstErr == nil {
				firstErr = err
			}
			stop()
		}
	}
	if firstErr != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", firstErr)
		os.Exit(1)
	}
}

// ignoreShutdown drops the errors a normal shutdown produces.
func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, room.ErrClosed) {
		return nil
	}
	return err
}

func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return addr
}
