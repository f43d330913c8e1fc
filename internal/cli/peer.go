package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/config"
	"github.com/lzarth/trisp2p/internal/discovery"
	"github.com/lzarth/trisp2p/internal/interaction"
	"github.com/lzarth/trisp2p/internal/logging"
	"github.com/lzarth/trisp2p/internal/peer"
	"github.com/lzarth/trisp2p/internal/status"
	"github.com/lzarth/trisp2p/internal/transport"
)

func runPeer(cmd *cobra.Command, args []string) error {
	host, port, err := resolveHostPort(args)
	if err != nil {
		return fmt.Errorf("resolve host/port: %w", err)
	}
	id := fmt.Sprintf("%s:%d", host, port)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	uiMode := cfg.UI.Mode
	if flagUI != "" {
		uiMode = flagUI
	}

	log, err := logging.New(false)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer log.Sync()

	ui, err := buildAdapter(uiMode)
	if err != nil {
		return fmt.Errorf("interaction adapter %q: %w", uiMode, err)
	}

	tp := transport.New()

	disc, err := discovery.New(id, discovery.Config{
		Group:            cfg.Discovery.Group,
		Port:             cfg.Discovery.Port,
		HelloPeriod:      cfg.Discovery.HelloPeriod,
		GossipEnabled:    cfg.Discovery.GossipEnabled,
		GossipStaleness:  cfg.Discovery.GossipStaleness,
		CleanerThreshold: cfg.Discovery.CleanerThreshold,
		CleanerPeriod:    cfg.Discovery.CleanerPeriod,
	}, log)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	metrics := status.New()

	p := peer.New(peer.Deps{
		ID:        id,
		Transport: tp,
		Discovery: disc,
		UI:        ui,
		Log:       log,
		Metrics:   metrics,
		Timers: peer.Timers{
			MatchmakingInitialDelay: cfg.Peer.MatchmakingInitialDelay,
			MatchmakingPeriod:       cfg.Peer.MatchmakingPeriod,
			LivenessPeriod:          cfg.Peer.LivenessPeriod,
		},
	})

	if err := p.Publish(); err != nil {
		return fmt.Errorf("publish RPC surface: %w", err)
	}
	p.Start()

	var statusSrv *status.Server
	if cfg.Status.Enabled {
		statusSrv = status.NewServer(statusAddr(cfg.Status.Addr, port), p, log)
		if err := statusSrv.Start(); err != nil {
			log.Warn("status server failed to start, continuing without diagnostics", zap.Error(err))
		} else {
			log.Info("status server listening", zap.String("addr", statusSrv.Addr()))
		}
	}

	fmt.Printf("Peer started on tcp://%s\n", id)
	fmt.Println("Auto-discovery active: this peer will pair automatically once it finds a free opponent.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if statusSrv != nil {
		statusSrv.Close()
	}
	return p.Shutdown()
}

// resolveHostPort mirrors AutoPeerMain.java's argument handling: zero args
// picks both host and a free port, one arg fixes the host, two args fix
// both.
func resolveHostPort(args []string) (string, int, error) {
	switch len(args) {
	case 0:
		host, err := localAddress()
		if err != nil {
			return "", 0, err
		}
		port, err := freePort()
		return host, port, err
	case 1:
		port, err := freePort()
		return args[0], port, err
	default:
		var port int
		if _, err := fmt.Sscanf(args[1], "%d", &port); err != nil {
			return "", 0, fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		return args[0], port, nil
	}
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func localAddress() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "127.0.0.1", nil
}

func buildAdapter(mode string) (interaction.Adapter, error) {
	switch mode {
	case "termbox":
		return interaction.NewTermbox()
	case "stdin", "":
		return interaction.NewStdin(os.Stdin, os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown ui mode %q", mode)
	}
}

func statusAddr(configured string, rpcPort int) string {
	if configured != "" {
		return configured
	}
	return fmt.Sprintf(":%d", rpcPort+1)
}
