package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	alarmSound   string
	alarmMessage string
)

var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Control the device alarm",
}

var alarmStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Trigger an alarm on the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		params := map[string]any{"sound": alarmSound}
		if alarmMessage != "" {
			params["message"] = alarmMessage
		}
		resp, err := c.Command(cmd.Context(), "alarm.start", params, deviceFlag)
		if err != nil {
			return err
		}
		if resp.Status == "ok" {
			fmt.Println("Alarm started")
			return nil
		}
		printResponse(resp)
		return nil
	},
}

var alarmStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the alarm on the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Command(cmd.Context(), "alarm.stop", map[string]any{}, deviceFlag)
		if err != nil {
			return err
		}
		if resp.Status == "ok" {
			fmt.Println("Alarm stopped")
			return nil
		}
		printResponse(resp)
		return nil
	},
}

func init() {
	alarmStartCmd.Flags().StringVar(&alarmSound, "sound", "default", "Sound: default, loud, hell")
	alarmStartCmd.Flags().StringVar(&alarmMessage, "message", "", "Optional message to display")
	addDeviceFlag(alarmStartCmd)
	addDeviceFlag(alarmStopCmd)
	alarmCmd.AddCommand(alarmStartCmd, alarmStopCmd)
	rootCmd.AddCommand(alarmCmd)
}
