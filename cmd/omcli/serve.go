package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvald/omcli/internal/apns"
	"github.com/rvald/omcli/internal/config"
	"github.com/rvald/omcli/internal/discord"
	"github.com/rvald/omcli/internal/discovery"
	"github.com/rvald/omcli/internal/logger"
	"github.com/rvald/omcli/internal/registry"
	"github.com/rvald/omcli/internal/server"
)

var (
	servePort int
	serveBind string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the command broker server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(servePort, serveBind)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Listen port")
	serveCmd.Flags().StringVar(&serveBind, "bind", config.DefaultBind, "Bind address")
}

func isLoopback(bind string) bool {
	if ip := net.ParseIP(bind); ip != nil {
		return ip.IsLoopback()
	}
	return bind == "localhost"
}

func runServe(port int, bind string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Setup(config.DataDir())

	cfg, err := config.LoadOrCreate(port, bind)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	reg, err := registry.Load(config.DevicesPath())
	if err != nil {
		return fmt.Errorf("device registry: %w", err)
	}
	slog.Info("loaded device registry", "devices", reg.Count())

	// APNs is optional; when configured, a broken signing key is fatal.
	var push server.Pusher
	if cfg.APNs != nil {
		apnsClient, err := apns.New(*cfg.APNs)
		if err != nil {
			return fmt.Errorf("apns: %w", err)
		}
		push = apnsClient
	}

	broker := server.NewBroker(server.BrokerConfig{
		Version:  version,
		APIKey:   cfg.Server.APIKey,
		Registry: reg,
		Push:     push,
	})

	srv := server.NewServer(server.ServerConfig{
		Port: port,
		Bind: bind,
		// Websocket upgrades are rare in normal operation; anything past
		// this is a misbehaving client or a scan.
		RateLimit: 5,
		RateBurst: 10,
	}, broker)

	// mDNS advertisement only makes sense when reachable from the LAN.
	if !isLoopback(bind) {
		adv, err := discovery.NewAdvertiser(discovery.Config{
			InstanceName: discovery.InstanceName(),
			Port:         port,
			Version:      version,
		})
		if err != nil {
			slog.Warn("mdns init failed", "error", err)
		} else if err := adv.Start(); err != nil {
			slog.Warn("mdns start failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	// Optional Discord lifecycle notifier.
	if cfg.Discord != nil {
		notifier, err := discord.NewNotifier(discord.NotifierConfig{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			slog.Warn("discord notifier init failed", "error", err)
		} else if err := notifier.Start(ctx, broker.Bus()); err != nil {
			slog.Warn("discord notifier connect failed", "error", err)
		} else {
			defer notifier.Stop()
		}
	}

	fmt.Printf("omcli server v%s\n", version)
	fmt.Printf("Listening on %s:%d\n", bind, port)
	fmt.Printf("API key: %s\n", cfg.Server.APIKey)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.ListenAndServe(ctx)
}
