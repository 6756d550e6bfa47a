package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvald/omcli/internal/protocol"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail server events (Ctrl-C to stop)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c, err := newClient()
		if err != nil {
			return err
		}
		return c.Events(ctx, func(ev protocol.ClientEvent) {
			ts := time.Now().Format("15:04:05")
			if len(ev.Data) > 0 && string(ev.Data) != "null" {
				fmt.Printf("%s %-22s device=%s %s\n", ts, ev.Event, ev.DeviceID, ev.Data)
				return
			}
			fmt.Printf("%s %-22s device=%s\n", ts, ev.Event, ev.DeviceID)
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
