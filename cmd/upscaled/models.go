package main

import (
	"encoding/json"
	"fmt"
	"os"

	"upscaled/internal/daemon"
	"upscaled/pkg/types"
)

// runModelsList prints the catalog with per-model install state.
func runModelsList(a *app, asJSON bool) error {
	d, err := daemon.New(a.cfg, newLogger(a.cfg.LogLevel))
	if err != nil {
		return err
	}
	entries := d.ListModels()
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(types.ModelsResponse{Models: entries})
	}
	fmt.Printf("%-28s %-9s %5s  %-12s %s\n", "ID", "STATE", "SCALE", "ARCH", "NAME")
	for _, m := range entries {
		fmt.Printf("%-28s %-9s %4dx  %-12s %s\n", m.ID, m.State, m.Scale, m.Architecture, m.Name)
	}
	return nil
}

// runModelsAdd registers a weight file already on disk as a user-defined
// model. The file stays in place; the registry records path and checksum.
func runModelsAdd(a *app, id, weightsPath string, f addFlags) error {
	d, err := daemon.New(a.cfg, newLogger(a.cfg.LogLevel))
	if err != nil {
		return err
	}
	desc := types.Descriptor{
		ID:             id,
		Name:           f.name,
		Architecture:   f.arch,
		Scale:          f.scale,
		InputChannels:  f.inChannels,
		OutputChannels: f.outChannels,
		Tags:           splitCSV(f.tags),
	}
	if err := d.AddLocalModel(desc, weightsPath); err != nil {
		return err
	}
	fmt.Printf("registered %s (x%d %s)\n", id, f.scale, f.arch)
	return nil
}

// runModelsAudit reconciles the weight directory against the registry and
// prints what moved.
func runModelsAudit(a *app) error {
	d, err := daemon.New(a.cfg, newLogger(a.cfg.LogLevel))
	if err != nil {
		return err
	}
	rep, err := d.Audit()
	if err != nil {
		return err
	}
	fmt.Printf("kept %d file(s)\n", rep.Kept)
	for _, name := range rep.Renamed {
		fmt.Printf("renamed    %s\n", name)
	}
	for _, id := range rep.Adopted {
		fmt.Printf("adopted    %s\n", id)
	}
	for _, name := range rep.Quarantined {
		fmt.Printf("quarantined %s\n", name)
	}
	return nil
}
