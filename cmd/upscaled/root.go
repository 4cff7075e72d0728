package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"upscaled/internal/config"
)

// app carries the flag state shared by every subcommand plus the
// configuration resolved from file, environment and flags.
type app struct {
	configPath   string
	dataDir      string
	modelsDir    string
	catalogURL   string
	defaultModel string
	logLevel     string

	cfg config.Config
}

// buildRootCmd is a convenience for main and help-only fallbacks.
func buildRootCmd() *cobra.Command { return buildRootCmdWith(&app{}) }

// buildRootCmdWith constructs the Cobra command tree wired to the run* actions.
func buildRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "upscaled",
		Short:         "Tiled super-resolution daemon and model catalog tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> config. Flags beat environment beats config file.
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", envOr("UPSCALED_CONFIG", ""), "Config file (.json|.yaml|.toml)")
	pf.StringVar(&a.dataDir, "data-dir", "", "Directory holding the model registry (defaults UPSCALED_DATA_DIR or ~/.upscaled)")
	pf.StringVar(&a.modelsDir, "models-dir", "", "Directory for downloaded weight files (defaults UPSCALED_MODELS_DIR)")
	pf.StringVar(&a.catalogURL, "catalog-url", "", "Remote model catalog URL (defaults UPSCALED_CATALOG_URL)")
	pf.StringVar(&a.defaultModel, "default-model", "", "Model id used when a request names none (defaults UPSCALED_DEFAULT_MODEL)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults UPSCALED_LOG_LEVEL or info)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.resolve(cmd)
	}

	// serve
	var addr string
	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the upscale daemon and its HTTP API",
		Example: "  upscaled serve --addr :8090 --catalog-url https://models.example.com/catalog.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			return runServe(a)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", envOr("UPSCALED_ADDR", ""), "HTTP listen address, e.g. :8090")
	root.AddCommand(serveCmd)

	// sync
	var detail bool
	syncCmd := &cobra.Command{
		Use:     "sync",
		Short:   "Synchronize the local registry with the remote catalog",
		Example: "  upscaled sync\n  upscaled sync --detail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(a, detail)
		},
	}
	syncCmd.Flags().BoolVar(&detail, "detail", false, "Include the full per-model decision list")
	root.AddCommand(syncCmd)

	// fetch
	var fetchAll bool
	fetchCmd := &cobra.Command{
		Use:     "fetch [model-id...]",
		Short:   "Download and verify weight files for catalog models",
		Example: "  upscaled fetch 4x-ultrasharp\n  upscaled fetch --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fetchAll && len(args) == 0 {
				return fmt.Errorf("fetch requires model ids or --all")
			}
			return runFetch(a, args, fetchAll)
		},
	}
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "Fetch every model that is still remote")
	root.AddCommand(fetchCmd)

	// models group
	modelsCmd := &cobra.Command{Use: "models", Short: "Inspect and manage the model registry", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("models requires a subcommand: list|add|audit")
	}}
	var asJSON bool
	modelsList := &cobra.Command{
		Use:   "list",
		Short: "List catalog models and their install state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsList(a, asJSON)
		},
	}
	modelsList.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")
	var add addFlags
	modelsAdd := &cobra.Command{
		Use:     "add <model-id> <weights-file>",
		Short:   "Register weights already on disk as a user-defined model",
		Example: "  upscaled models add 4x-custom ./4x-custom.pth --arch esrgan --scale 4 --tags anime,photo",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsAdd(a, args[0], args[1], add)
		},
	}
	modelsAdd.Flags().StringVar(&add.name, "name", "", "Display name (defaults to the model id)")
	modelsAdd.Flags().StringVar(&add.arch, "arch", "resampler", "Architecture family of the weights")
	modelsAdd.Flags().IntVar(&add.scale, "scale", 4, "Native upscale factor")
	modelsAdd.Flags().IntVar(&add.inChannels, "input-channels", 3, "Color channels the network consumes (1..4)")
	modelsAdd.Flags().IntVar(&add.outChannels, "output-channels", 3, "Color channels the network produces (1..4)")
	modelsAdd.Flags().StringVar(&add.tags, "tags", "", "Comma separated tags, e.g. anime,photo")
	modelsAudit := &cobra.Command{
		Use:   "audit",
		Short: "Reconcile weight files on disk with the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsAudit(a)
		},
	}
	modelsCmd.AddCommand(modelsList, modelsAdd, modelsAudit)
	root.AddCommand(modelsCmd)

	// upscale (one-shot, no server)
	var model string
	var scale int
	upscaleCmd := &cobra.Command{
		Use:     "upscale <input-image> <output.png>",
		Short:   "Upscale a single image file without running the server",
		Example: "  upscaled upscale photo.jpg photo@4x.png --model 4x-ultrasharp",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpscale(a, args[0], args[1], model, scale)
		},
	}
	upscaleCmd.Flags().StringVar(&model, "model", "", "Model id (defaults to the configured default model)")
	upscaleCmd.Flags().IntVar(&scale, "scale", 0, "Expected scale factor; must match the model's native scale")
	root.AddCommand(upscaleCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(os.Stdout) }})
	root.AddCommand(completionCmd)

	return root
}

// addFlags collects the models add options.
type addFlags struct {
	name        string
	arch        string
	scale       int
	inChannels  int
	outChannels int
	tags        string
}

// resolve folds the config file, UPSCALED_* environment variables and
// changed flags into a validated Config, in that order of precedence.
func (a *app) resolve(cmd *cobra.Command) error {
	var cfg config.Config
	if a.configPath != "" {
		c, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if v := os.Getenv("UPSCALED_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("UPSCALED_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("UPSCALED_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("UPSCALED_CATALOG_URL"); v != "" {
		cfg.CatalogURL = v
	}
	if v := os.Getenv("UPSCALED_DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("UPSCALED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if f.Changed("models-dir") {
		cfg.ModelsDir = a.modelsDir
	}
	if f.Changed("catalog-url") {
		cfg.CatalogURL = a.catalogURL
	}
	if f.Changed("default-model") {
		cfg.DefaultModel = a.defaultModel
	}
	if f.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma separated flag value, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
