package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rvald/omcli/internal/apns"
	"github.com/rvald/omcli/internal/config"
	"github.com/rvald/omcli/internal/logger"
	"github.com/rvald/omcli/internal/relay"
)

var (
	relayPort int
	relayBind string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Start the rate-limited push relay",
	Long: `Start the standalone relay that forwards push and VoIP requests to
APNs. Used when the primary server cannot reach APNs directly. Requires a
[relay] section in config.toml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(relayPort, relayBind)
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().IntVar(&relayPort, "port", 0, "Listen port (defaults to config)")
	relayCmd.Flags().StringVar(&relayBind, "bind", "", "Bind address (defaults to config)")
}

func runRelay(port int, bind string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Setup(config.DataDir())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Relay == nil {
		return fmt.Errorf("missing [relay] section in config.toml")
	}

	if port == 0 {
		port = cfg.Relay.Port
	}
	if bind == "" {
		bind = cfg.Relay.Bind
	}

	apnsClient, err := apns.New(cfg.Relay.ToAPNsConfig())
	if err != nil {
		return fmt.Errorf("apns: %w", err)
	}

	srv := relay.NewServer(relay.Config{
		Port:       port,
		Bind:       bind,
		MaxPerHour: cfg.Relay.MaxRequestsPerDevicePerHour,
	}, apnsClient)

	fmt.Printf("omcli relay v%s\n", version)
	fmt.Printf("Listening on %s:%d\n", bind, port)

	return srv.ListenAndServe(ctx)
}
