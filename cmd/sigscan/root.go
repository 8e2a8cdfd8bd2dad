package main

import (
	"fmt"
	"strconv"

	"sigscan/catalog"
	"sigscan/config"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"targets_file":     "targets",
	"module":           "module",
	"window_size":      "window-size",
	"page_size":        "page-size",
	"parallelism":      "parallelism",
	"pointer_width":    "pointer-width",
	"output.ini":       "ini",
	"output.constants": "constants",
	"output.package":   "package",
	"debug":            "debug",
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "sigscan",
		Short: "Locate data structures in a running process by byte signature",
		Long: `sigscan finds wildcard byte patterns in a module of a running process
and resolves each match into the address of the data it references.

Examples:
  sigscan scan --process hl2.exe --module client.dll
  sigscan scan --pid 4242 --targets targets.yaml --constants offsets.go
  sigscan image --file client.dll --base 0x10000000
  sigscan check --targets targets.yaml`,
		SilenceUsage: true,
	}

	defaults := config.DefaultConfig()
	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("targets", "", "target catalog (default: built-in catalog)")
	flags.StringP("module", "m", "", "module to scan (default: the catalog's module)")
	flags.Uint("window-size", defaults.WindowSize, "bytes read per request")
	flags.Uint("page-size", defaults.PageSize, "page granularity used to skip unreadable memory")
	flags.Int("parallelism", defaults.Parallelism, "targets scanned concurrently")
	flags.Int("pointer-width", defaults.PointerWidth, "width of absolute pointers without an explicit width (4 or 8)")
	flags.String("ini", defaults.Output.INI, "key-value results file (empty to skip)")
	flags.String("constants", defaults.Output.Constants, "Go constants file (empty to skip)")
	flags.String("package", defaults.Output.Package, "package name for the constants file")
	flags.Bool("debug", defaults.Debug, "verbose logging")

	root.AddCommand(
		newScanCommand(&cfgFile),
		newImageCommand(&cfgFile),
		newCheckCommand(&cfgFile),
		newDumpCommand(&cfgFile),
		newModulesCommand(),
	)

	return root
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg *config.Config
	cat *catalog.Catalog
	log *logger.Logger
}

func newApp(cmd *cobra.Command, cfgFile string) (*app, error) {
	bound := make(map[string]*pflag.Flag, len(flagKeys))
	for key, name := range flagKeys {
		bound[key] = cmd.Flags().Lookup(name)
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile, Flags: bound})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}

	a := &app{
		cfg: cfg,
		cat: cat,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, config.AppName)),
	}
	if cfg.Debug {
		a.log.Debugln("config:", fmt.Sprintf("%+v", *cfg))
	}
	return a, nil
}

// moduleName prefers the configured module over the catalog's.
func (a *app) moduleName() string {
	if a.cfg.Module != "" {
		return a.cfg.Module
	}
	return a.cat.Module
}

func parseAddress(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}
