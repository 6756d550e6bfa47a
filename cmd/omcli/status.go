package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and device status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		status, err := c.Status(cmd.Context())
		if err != nil {
			return err
		}
		h := status.UptimeSecs / 3600
		m := (status.UptimeSecs % 3600) / 60
		s := status.UptimeSecs % 60
		fmt.Println("Server Status:")
		fmt.Printf("  Version:        %s\n", status.Version)
		fmt.Printf("  Uptime:         %dh %dm %ds\n", h, m, s)
		fmt.Printf("  Devices online: %d\n", status.DevicesOnline)
		fmt.Printf("  Devices total:  %d\n", status.DevicesTotal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
