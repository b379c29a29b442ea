package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/soft"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Draw a moving test pattern on every output",
	RunE:  runPattern,
}

func init() {
	patternCmd.Flags().Duration("duration", 5*time.Second, "How long to run")
	patternCmd.Flags().Duration("frame-time", 33*time.Millisecond, "Delay between frames")
	rootCmd.AddCommand(patternCmd)
}

// Full-viewport quad as two triangles.
var quadVertices = []float32{
	-1, -1, 1, -1, 1, 1,
	-1, -1, 1, 1, -1, 1,
}

var quadTexcoords = []float32{
	0, 0, 1, 0, 1, 1,
	0, 0, 1, 1, 0, 1,
}

// Gradient colors: blue bottom-left, red bottom-right, green top.
var gradientColors = []float32{
	0, 0, 1, 1, 0, 0, 0, 1, 0,
	0, 0, 1, 0, 1, 0, 0, 0, 1,
}

func runPattern(cmd *cobra.Command, args []string) error {
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

	var outputs []*compositor.Output
	for o := comp.Outputs(); o != nil; o = o.Next() {
		mode := cfg.preferredMode(o)
		if mode == nil {
			log.Printf("%s: no usable mode, skipping", o.ID())
			continue
		}
		if err := o.Activate(mode); err != nil {
			log.Printf("%s: activate %s: %v", o.ID(), mode.Name(), err)
			continue
		}
		fmt.Printf("%s: active at %s\n", o.ID(), mode.Name())
		outputs = append(outputs, o)
	}
	if len(outputs) == 0 {
		return fmt.Errorf("no output could be activated")
	}

	ctx := comp.GetContext()
	tex, err := ctx.NewTex()
	if err != nil {
		return err
	}
	defer ctx.FreeTex(tex)
	if err := ctx.SetTexImage(tex, checkerboard(64, 8), 64, 64); err != nil {
		return err
	}

	duration, _ := cmd.Flags().GetDuration("duration")
	frameTime, _ := cmd.Flags().GetDuration("frame-time")

	start := time.Now()
	var frames int
	for time.Since(start) < duration {
		phase := float32(math.Sin(time.Since(start).Seconds() * 2))

		for _, o := range outputs {
			if err := o.Use(); err != nil {
				log.Printf("%s: use: %v", o.ID(), err)
				continue
			}
			ctx.Clear()
			ctx.DrawDef(quadVertices, gradientColors, 6)

			// Pulsing textured quad in the center.
			m := ctx.Stack().Push()
			s := 0.25 + 0.15*phase
			m.Scale(s, s, 1)
			ctx.DrawTex(quadVertices, quadTexcoords, 6, tex, m)
			ctx.Stack().Pop()

			if err := o.Swap(); err != nil {
				log.Printf("%s: swap: %v", o.ID(), err)
			}
		}
		frames++
		time.Sleep(frameTime)
	}

	for _, o := range outputs {
		_ = o.Deactivate()
	}
	fmt.Printf("%d frames on %d output(s) in %s\n", frames, len(outputs), time.Since(start).Round(time.Millisecond))
	return nil
}

// checkerboard builds a size x size test texture with the given cell size.
func checkerboard(size, cell int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
			} else {
				img.SetRGBA(x, y, color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff})
			}
		}
	}
	return img
}
