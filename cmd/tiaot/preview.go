package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/image/draw"
)

// writePreview renders a 2D ND-array as a grayscale image, scaling values
// from [min, max] to [0, 255] and each element to a zoom x zoom block.
func writePreview(cmd *cobra.Command, arrays map[string]array, o launchOptions) error {
	name := o.pngArg
	if name == "" {
		names := make([]string, 0, len(arrays))
		for n, a := range arrays {
			if len(a.Shape()) == 2 {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("--png: no 2D ndarray argument")
		}
		slices.Sort(names)
		name = names[0]
	}
	a, ok := arrays[name]
	if !ok {
		return fmt.Errorf("--png: no ndarray argument %q", name)
	}
	shape := a.Shape()
	if len(shape) != 2 {
		return fmt.Errorf("--png: %q has %d dimensions, want 2", name, len(shape))
	}
	vals, err := a.floats()
	if err != nil {
		return err
	}

	src := grayImage(vals, int(shape[0]), int(shape[1]))
	zoom := max(o.pngZoom, 1)
	dst := image.NewGray(image.Rect(0, 0, src.Bounds().Dx()*zoom, src.Bounds().Dy()*zoom))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	f, err := os.Create(o.png)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %s (%dx%d)\n", o.png, dst.Bounds().Dx(), dst.Bounds().Dy())
	return nil
}

// grayImage lays out rows along y and columns along x.
func grayImage(vals []float64, rows, cols int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	lo, hi, _ := summarize(vals)
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := (vals[i*cols+j] - lo) * scale
			img.SetGray(j, i, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return img
}
