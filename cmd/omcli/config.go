package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rvald/omcli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or update configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Server URL: %s\n", cfg.Server.URL)
		fmt.Printf("API Key:    %s\n", cfg.Server.APIKey)
		fmt.Printf("Port:       %d\n", cfg.Server.Port)
		fmt.Printf("Bind:       %s\n", cfg.Server.Bind)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		switch key {
		case "server", "url":
			cfg.Server.URL = value
		case "api_key", "token":
			cfg.Server.APIKey = value
		case "port":
			port, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return fmt.Errorf("invalid port number")
			}
			cfg.Server.Port = int(port)
		case "bind":
			cfg.Server.Bind = value
		default:
			return fmt.Errorf("unknown config key %q (available: server, api_key, port, bind)", key)
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Config updated: %s = %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
