package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat/internal/devices"
	"omnichat/internal/logging"

	"github.com/spf13/cobra"
)

var (
	devicesTestCamera int
	devicesJSON       bool
)

// devicesCmd scans cameras, screens, and microphones
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Scan cameras, screens, and microphones",
	Long: `Enumerates capture devices the live loop can use: cameras (with a
one-frame capture test), screens, and microphones. The report ends
with the 'omni live' flags matching what was found.

Examples:
  omni devices
  omni devices --json
  omni devices --test-camera 0`,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().IntVar(&devicesTestCamera, "test-camera", -1, "Capture one frame from camera N and report its resolution")
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Emit the inventory as JSON")
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.DataDir()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	scanner := devices.New()

	if devicesTestCamera >= 0 {
		res, err := scanner.TestCamera(ctx, devicesTestCamera)
		if err != nil {
			return err
		}
		fmt.Printf("camera %d (%s): captured %dx%d frame, %d bytes\n",
			res.Index, res.Device, res.Width, res.Height, res.Bytes)
		return nil
	}

	inv := scanner.Scan(ctx)

	if devicesJSON {
		out, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Print(inv.Report())
	return nil
}
