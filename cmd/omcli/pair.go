package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pairCmd = &cobra.Command{
	Use:   "pair <code>",
	Short: "Pair a device by its 6-digit code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Pair(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Paired: %s (%s)\n", resp.Name, resp.DeviceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)
}
