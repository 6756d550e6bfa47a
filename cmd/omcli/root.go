package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rvald/omcli/internal/client"
	"github.com/rvald/omcli/internal/config"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:           "omcli",
	Short:         "Remote mobile device control",
	Long:          `omcli brokers commands from this machine to paired mobile devices.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// deviceFlag is shared by every command that targets a single device.
var deviceFlag string

func addDeviceFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&deviceFlag, "device", "", "Target device ID")
}

// newClient builds an API client from the saved config.
func newClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Server.URL, cfg.Server.APIKey), nil
}

// printResponse dumps a response the command has no prettier rendering for.
func printResponse(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(out))
}
