package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Activate sleep mode on the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Command(cmd.Context(), "sleep.start", map[string]any{}, deviceFlag)
		if err != nil {
			return err
		}
		if resp.Status == "ok" {
			fmt.Println("Sleep mode activated, screen will stay on")
			return nil
		}
		printResponse(resp)
		return nil
	},
}

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Deactivate sleep mode on the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Command(cmd.Context(), "sleep.stop", map[string]any{}, deviceFlag)
		if err != nil {
			return err
		}
		if resp.Status == "ok" {
			fmt.Println("Sleep mode deactivated")
			return nil
		}
		printResponse(resp)
		return nil
	},
}

func init() {
	addDeviceFlag(sleepCmd)
	addDeviceFlag(wakeCmd)
	rootCmd.AddCommand(sleepCmd, wakeCmd)
}
