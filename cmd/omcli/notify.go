package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notifyPriority string

var notifyCmd = &cobra.Command{
	Use:   "notify <message>",
	Short: "Send a notification to the device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		params := map[string]any{
			"title":    "omcli",
			"body":     args[0],
			"priority": notifyPriority,
		}
		if _, err := c.Command(cmd.Context(), "notify.send", params, deviceFlag); err != nil {
			return err
		}
		fmt.Println("Notification sent")
		return nil
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyPriority, "priority", "normal", "Priority: low, normal, critical")
	addDeviceFlag(notifyCmd)
	rootCmd.AddCommand(notifyCmd)
}
