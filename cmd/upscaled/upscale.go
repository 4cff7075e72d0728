package main

import (
	"fmt"
	"os"

	"upscaled/internal/daemon"
	"upscaled/pkg/types"
)

// runUpscale reads one image, runs it through the engine and writes the
// PNG result, removing the output file again on failure.
func runUpscale(a *app, inPath, outPath, model string, scale int) error {
	d, err := daemon.New(a.cfg, newLogger(a.cfg.LogLevel))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	params := types.UpscaleParams{Model: model, Scale: scale}
	if err := d.Upscale(ctx, params, data, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}
