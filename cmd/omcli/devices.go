package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List paired devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		devices, err := c.Devices(cmd.Context())
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No devices paired")
			return nil
		}
		fmt.Printf("%-38s %-20s %-10s\n", "ID", "NAME", "STATUS")
		fmt.Println(strings.Repeat("-", 68))
		for _, d := range devices {
			status := "offline"
			if d.Online {
				status = "online"
			}
			fmt.Printf("%-38s %-20s %-10s\n", d.ID, d.Name, status)
		}
		return nil
	},
}

var devicesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Unpair a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeleteDevice(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed device %s\n", args[0])
		return nil
	},
}

func init() {
	devicesCmd.AddCommand(devicesRmCmd)
	rootCmd.AddCommand(devicesCmd)
}
