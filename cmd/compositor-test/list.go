package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate display connectors and their modes",
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

type connectorJSON struct {
	ID        string     `json:"id"`
	Preferred string     `json:"preferred"`
	Modes     []modeJSON `json:"modes"`
}

type modeJSON struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func runList(cmd *cobra.Command, args []string) error {
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

	if err := backend.Acquire(); err != nil {
		return err
	}
	defer func() { _ = backend.Release() }()

	conns, err := backend.Connectors()
	if err != nil {
		return err
	}

	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		out := make([]connectorJSON, 0, len(conns))
		for _, conn := range conns {
			cj := connectorJSON{ID: conn.ID}
			for i, m := range conn.Modes {
				cj.Modes = append(cj.Modes, modeJSON{Name: m.Name, Width: m.Width, Height: m.Height})
				if i == conn.Preferred {
					cj.Preferred = m.Name
				}
			}
			out = append(out, cj)
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for i, conn := range conns {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s\n", conn.ID)
		for j, m := range conn.Modes {
			marker := " "
			if j == conn.Preferred {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, m.Name)
		}
	}
	return nil
}
