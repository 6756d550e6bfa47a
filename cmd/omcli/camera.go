package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	cameraFacing string
	cameraOutput string
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Use the device camera",
}

var cameraSnapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Take a photo and save it locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Command(cmd.Context(), "camera.snap", map[string]any{"facing": cameraFacing}, deviceFlag)
		if err != nil {
			return err
		}

		if resp.Status == "error" {
			if resp.ErrorCode == "USER_DECLINED" {
				return fmt.Errorf("the photo was declined on the device")
			}
			if resp.Error != "" {
				return fmt.Errorf("%s", resp.Error)
			}
			return fmt.Errorf("unknown error")
		}

		var data struct {
			DeliveredVia string `json:"delivered_via"`
			Base64       string `json:"base64"`
		}
		if len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response data: %w", err)
			}
		}

		// A push delivery cannot carry image data back.
		if data.DeliveredVia == "apns" {
			return fmt.Errorf("camera snap requires the device to be connected, open the app and try again")
		}
		if data.Base64 == "" {
			printResponse(resp)
			return fmt.Errorf("no image data in response")
		}

		bytes, err := base64.StdEncoding.DecodeString(data.Base64)
		if err != nil {
			return fmt.Errorf("decode image: %w", err)
		}

		path := cameraOutput
		if path == "" {
			path = time.Now().UTC().Format("photo_2006-01-02_15-04-05.jpg")
		}
		if err := os.WriteFile(path, bytes, 0644); err != nil {
			return fmt.Errorf("write file: %w", err)
		}
		fmt.Printf("Saved %s (%d bytes)\n", path, len(bytes))
		return nil
	},
}

func init() {
	cameraSnapCmd.Flags().StringVar(&cameraFacing, "facing", "back", "Camera: back, front")
	cameraSnapCmd.Flags().StringVarP(&cameraOutput, "output", "o", "", "Output file (default photo_<timestamp>.jpg)")
	addDeviceFlag(cameraSnapCmd)
	cameraCmd.AddCommand(cameraSnapCmd)
	rootCmd.AddCommand(cameraCmd)
}
