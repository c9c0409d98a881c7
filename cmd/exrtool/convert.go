package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vearutop/exrlayers"
	"github.com/vearutop/exrlayers/canvas"
)

type convertFlags struct {
	outDir   string
	format   string
	maxSize  uint
	filmic   bool
	settings exrlayers.Settings
}

func newConvertCmd() *cobra.Command {
	f := convertFlags{settings: exrlayers.DefaultSettings()}

	cmd := &cobra.Command{
		Use:   "convert <file.exr>",
		Short: "Convert every layer of an OpenEXR file to an 8-bit PNG or TIFF image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.outDir, "out-dir", "o", ".", "output directory")
	fs.StringVar(&f.format, "format", string(canvas.FormatPNG), "output format: png or tiff")
	fs.UintVar(&f.maxSize, "max-size", 0, "downscale layers to fit into a square of this size, 0 keeps original size")
	fs.BoolVar(&f.filmic, "filmic", false, "use filmic curve with gamma, knee and defog instead of linear scale")
	fs.Float32Var(&f.settings.Gamma, "gamma", f.settings.Gamma, "display gamma")
	fs.Float32Var(&f.settings.Exposure, "exposure", f.settings.Exposure, "exposure in stops")
	fs.Float32Var(&f.settings.KneeLow, "knee-low", f.settings.KneeLow, "knee low in stops")
	fs.Float32Var(&f.settings.KneeHigh, "knee-high", f.settings.KneeHigh, "knee high in stops")
	fs.Float32Var(&f.settings.Defog, "defog", f.settings.Defog, "fog level subtracted before exposure")

	return cmd
}

func runConvert(cmd *cobra.Command, path string, f convertFlags) error {
	format := canvas.Format(strings.ToLower(f.format))
	if format != canvas.FormatPNG && format != canvas.FormatTIFF {
		return fmt.Errorf("unsupported format %q", f.format)
	}
	if f.filmic {
		f.settings.Curve = exrlayers.CurveFilmic
	}

	log := logger()
	img := exrlayers.New(path, exrlayers.WithLogger(log))
	if err := img.Load(); err != nil {
		return err
	}

	store := canvas.New()
	id, err := exrlayers.Convert(img, store,
		exrlayers.WithSettings(f.settings),
		exrlayers.WithConvertLogger(log),
	)
	if err != nil {
		return err
	}
	c, err := store.Canvas(id)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, l := range c.Layers {
		out := filepath.Join(f.outDir, outputName(base, l.Name, format))
		if err := writeLayer(out, l, format, f.maxSize); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}

func writeLayer(path string, l *canvas.Layer, format canvas.Format, maxSize uint) (err error) {
	im, err := l.Image()
	if err != nil {
		return err
	}

	w, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	return canvas.Encode(w, canvas.Preview(im, maxSize), format)
}

func outputName(base, layer string, format canvas.Format) string {
	if layer == "" {
		return base + "." + string(format)
	}
	layer = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, layer)
	return base + "." + layer + "." + string(format)
}
