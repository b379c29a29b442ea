// Command compositor-test is a diagnostic tool for the compositor library:
// it enumerates display connectors, drives test patterns onto outputs and
// exercises the sleep/wake handoff against hotplug events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "compositor-test",
	Short: "Display output diagnostic tool",
	Long: "Enumerates display connectors, drives test patterns onto outputs\n" +
		"and exercises sleep/wake handoff using one of the available display\n" +
		"backends (virtual, fbdev, xrandr, spi).",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("backend", "virtual", "Display backend: virtual, fbdev, xrandr or spi")
	rootCmd.PersistentFlags().String("display", "", "X11 display for the xrandr backend (default: $DISPLAY)")
	rootCmd.PersistentFlags().Bool("logind", false, "Open fbdev devices through systemd-logind")
	rootCmd.PersistentFlags().String("config", "", "YAML config with mode preferences and SPI panels")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
