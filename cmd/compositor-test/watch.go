package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/soft"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Track hotplug events and demonstrate sleep/wake handoff",
	Long: "Runs a compositor and reconciles its output list on every hotplug\n" +
		"notification. SIGUSR1 puts the compositor asleep (releasing the\n" +
		"display hardware to other processes), SIGUSR2 wakes it up again.\n" +
		"Interrupt to quit.",
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	backend, cleanup, err := openBackend(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	comp, err := compositor.New(backend, soft.NewRenderer())
	if err != nil {
		return err
	}
	defer comp.Unref()

	events, stopWatch, err := watchEvents(backend)
	if err != nil {
		return err
	}
	defer stopWatch()
	if events == nil {
		log.Printf("backend has no hotplug source; waiting for signals only")
	}

	printOutputs(comp)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)

	for {
		select {
		case <-events:
			if comp.IsAsleep() {
				log.Printf("hotplug while asleep, deferred to wake-up")
				continue
			}
			log.Printf("hotplug, refreshing")
			if err := comp.Refresh(); err != nil {
				log.Printf("refresh: %v", err)
				continue
			}
			printOutputs(comp)

		case sig := <-signals:
			switch sig {
			case syscall.SIGUSR1:
				log.Printf("going asleep, hardware released")
				comp.Sleep()
			case syscall.SIGUSR2:
				if err := comp.WakeUp(); err != nil {
					log.Printf("wake up: %v", err)
					continue
				}
				log.Printf("awake again")
				printOutputs(comp)
			default:
				return nil
			}
		}
	}
}

func printOutputs(comp *compositor.Compositor) {
	n := 0
	for o := comp.Outputs(); o != nil; o = o.Next() {
		state := "inactive"
		if o.IsActive() {
			state = "active at " + o.CurrentMode().Name()
		}
		def := "none"
		if o.DefaultMode() != nil {
			def = o.DefaultMode().Name()
		}
		fmt.Printf("  %s: %s, default %s\n", o.ID(), state, def)
		n++
	}
	if n == 0 {
		fmt.Println("  no outputs")
	}
}
