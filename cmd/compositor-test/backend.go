package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/fbdev"
	"github.com/BeatGlow/compositor/backend/spi"
	"github.com/BeatGlow/compositor/backend/virtual"
	"github.com/BeatGlow/compositor/backend/xrandr"
	"github.com/BeatGlow/compositor/hotplug"
	"github.com/BeatGlow/compositor/logind"
)

// openBackend builds the backend selected on the command line. The
// returned cleanup releases resources the backend itself does not own.
func openBackend(cmd *cobra.Command, cfg *config) (compositor.Backend, func(), error) {
	name, _ := cmd.Flags().GetString("backend")
	cleanup := func() {}

	switch name {
	case "virtual":
		hw := virtual.New()
		hw.Plug("VIRT-1", 0,
			compositor.ModeInfo{Width: 1920, Height: 1080},
			compositor.ModeInfo{Width: 1280, Height: 720},
		)
		return hw, cleanup, nil

	case "fbdev":
		config := fbdev.DefaultConfig
		if useLogind, _ := cmd.Flags().GetBool("logind"); useLogind {
			session, err := logind.NewSession()
			if err != nil {
				return nil, nil, err
			}
			config.Opener = session
			cleanup = func() { _ = session.Close() }
		}
		hw, err := fbdev.New(&config)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return hw, cleanup, nil

	case "xrandr":
		display, _ := cmd.Flags().GetString("display")
		return xrandr.New(display), cleanup, nil

	case "spi":
		panels := cfg.panels()
		if len(panels) == 0 {
			return nil, nil, errors.New("spi backend needs panels in the config file")
		}
		return spi.New(panels...), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", name)
	}
}

// watchEvents returns a topology notification channel for the backend:
// RandR events for xrandr, kernel uevents otherwise. The virtual and spi
// backends have no hotplug source and return nil.
func watchEvents(backend compositor.Backend) (<-chan struct{}, func(), error) {
	switch hw := backend.(type) {
	case *xrandr.Backend:
		events, err := hw.Watch()
		return events, func() {}, err
	case *fbdev.Backend:
		w, err := hotplug.NewWatcher()
		if err != nil {
			return nil, nil, err
		}
		return w.Events(), func() { _ = w.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
