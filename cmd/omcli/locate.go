package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Get the device location",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Command(cmd.Context(), "location.get", map[string]any{"accuracy": "precise"}, deviceFlag)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			printResponse(resp)
			return nil
		}
		var loc struct {
			Lat      *float64 `json:"lat"`
			Lon      *float64 `json:"lon"`
			Accuracy *float64 `json:"accuracy"`
		}
		if err := json.Unmarshal(resp.Data, &loc); err != nil || loc.Lat == nil || loc.Lon == nil {
			printResponse(json.RawMessage(resp.Data))
			return nil
		}
		fmt.Printf("Location: %v, %v\n", *loc.Lat, *loc.Lon)
		if loc.Accuracy != nil {
			fmt.Printf("Accuracy: %vm\n", *loc.Accuracy)
		}
		return nil
	},
}

func init() {
	addDeviceFlag(locateCmd)
	rootCmd.AddCommand(locateCmd)
}
