package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vearutop/exrlayers"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.exr>",
		Short: "Print dimensions and layers of an OpenEXR file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img := exrlayers.New(args[0], exrlayers.WithLogger(logger()))
			if err := img.Load(); err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), img)
		},
	}
}

func printInfo(w io.Writer, img *exrlayers.Image) error {
	if _, err := fmt.Fprintf(w, "%s: %dx%d, %d layer(s)\n", img.Path(), img.Width(), img.Height(), len(img.Layers())); err != nil {
		return err
	}
	for _, l := range img.Layers() {
		name := l.Name()
		if name == "" {
			name = "(default)"
		}
		channels := lo.Map(l.Channels(), func(c *exrlayers.Channel, _ int) string {
			return c.Name() + ":" + c.PixelType().String()
		})
		if _, err := fmt.Fprintf(w, "  %s [%s] %s\n", name, exrlayers.Classify(l), strings.Join(channels, ", ")); err != nil {
			return err
		}
	}
	return nil
}
