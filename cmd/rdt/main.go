package main

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"rdtransport/internal/config"
	"rdtransport/pkg/logger"
	"rdtransport/pkg/transport"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Fatal("%v", err)
	}

	root := &cobra.Command{
		Use:     "rdt",
		Short:   "Reliable byte-stream transport over UDP",
		Version: version,
	}

	root.AddCommand(newClientCmd(cfg), newServerCmd(cfg))

	if err := root.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

// newClientCmd defaults its --peer flag to cfg.PeerAddr, so the documented
// precedence (CLI flag > env var > built-in default, SPEC_FULL.md §2.2)
// holds: cfg.PeerAddr already reflects RDT_PEER or the built-in default,
// and an explicit --peer on the command line overrides it.
func newClientCmd(cfg config.Config) *cobra.Command {
	var peer string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a server and pipe stdin/stdout through the connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, transport.RoleClient, "0.0.0.0:0", peer)
		},
	}
	cmd.Flags().StringVar(&peer, "peer", cfg.PeerAddr, "server address to connect to")
	return cmd
}

// newServerCmd defaults its --listen flag to cfg.ListenAddr for the same
// reason as newClientCmd's --peer.
func newServerCmd(cfg config.Config) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Wait for a client and pipe stdin/stdout through the connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, transport.RoleServer, listen, "")
		},
	}
	cmd.Flags().StringVar(&listen, "listen", cfg.ListenAddr, "address to bind and listen on")
	return cmd
}

func run(cfg config.Config, role transport.Role, listenAddr, peerAddr string) error {
	logger.SetLevel(levelFromString(cfg.LogLevel))
	logger.Section("rdt " + role.String())

	local, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return err
	}
	defer conn.Close()

	var peer *net.UDPAddr
	if peerAddr != "" {
		peer, err = net.ResolveUDPAddr("udp", peerAddr)
		if err != nil {
			return err
		}
	} else {
		peer = &net.UDPAddr{}
	}
	sock := transport.NewUDPSocket(conn, peer)

	bus := transport.NewEventBus()
	reg := prometheus.NewRegistry()
	metrics := transport.NewMetrics(reg)
	metrics.Attach(bus)

	stdin := bufio.NewReader(os.Stdin)
	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	ep := transport.NewEndpoint(transport.Config{
		Role:   role,
		Socket: sock,
		Events: bus,
		Input: func(buf []byte) int {
			n, _ := stdin.Read(buf)
			return n
		},
		Output: func(data []byte) {
			stdout.Write(data)
			stdout.Flush()
		},
	})

	logger.Attach(bus, ep.ConnID())

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-sigCh:
				return
			default:
			}
			if err := ep.Step(); err != nil {
				logger.Error("step failed: %v", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-sigCh:
		logger.Warn("shutting down")
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server: %v", err)
	}
}

func levelFromString(s string) int {
	switch s {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
