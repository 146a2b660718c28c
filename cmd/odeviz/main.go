package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/san-kum/odeviz/internal/config"
	"github.com/san-kum/odeviz/internal/coordinator"
	"github.com/san-kum/odeviz/internal/equation"
	"github.com/san-kum/odeviz/internal/logging"
	"github.com/san-kum/odeviz/internal/tui"
)

const envPrefix = "ODEVIZ"

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

// cli carries what every command needs once the root has parsed flags.
type cli struct {
	configFile string
	root       string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &cli{}

	rootCmd := &cobra.Command{
		Use:          "odeviz",
		Short:        "archive and inspect ODE solver results",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
		RunE: app.withArchive(app.browse),
	}

	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().String("data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "browse saved simulations interactively",
		RunE:  app.withArchive(app.browse),
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [equation_type]",
		Short: "list equation families or the presets of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, t := range equation.Types() {
					fmt.Fprintf(out, "  %-10s %s\n", t, equation.Describe(t))
				}
				return nil
			}
			if schema := equation.Schema(args[0]); len(schema) > 0 {
				fmt.Fprintf(out, "parameters for %s:\n", args[0])
				for _, p := range schema {
					fmt.Fprintf(out, "  %-10s default %g\n", p.Name, p.Default)
				}
			}
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Fprintf(out, "no presets for equation type: %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "presets for %s:\n", args[0])
			for _, name := range presets {
				p := config.GetPreset(args[0], name)
				fmt.Fprintf(out, "  %-10s %s  y0=%g yp0=%g t=[%g, %g]\n",
					name, formatParams(p.Params), p.Y0, p.YP0, p.TMin, p.TMax)
			}
			return nil
		},
	}

	rootCmd.AddCommand(browseCmd, presetsCmd, app.configCommand())
	rootCmd.AddCommand(app.archiveCommands()...)
	rootCmd.AddCommand(app.plotCommands()...)
	return rootCmd
}

// setup resolves configuration from defaults, the YAML file, ODEVIZ_*
// environment variables and flags, in increasing precedence.
func (a *cli) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, a.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.root = root
	return nil
}

func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("odeviz")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, config.DefaultConfig())

	flags := cmd.Flags()
	if err := v.BindPFlag("data_dir", flags.Lookup("data")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// values the file never mentions.
func setDefaults(v *viper.Viper, d *config.Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("db_file", d.DBFile)
	v.SetDefault("list_limit", d.ListLimit)
	v.SetDefault("recent_limit", d.RecentLimit)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("defaults.equation_type", d.Defaults.EquationType)
	v.SetDefault("defaults.y0", d.Defaults.Y0)
	v.SetDefault("defaults.yp0", d.Defaults.YP0)
	v.SetDefault("defaults.t_min", d.Defaults.TMin)
	v.SetDefault("defaults.t_max", d.Defaults.TMax)
}

// withArchive opens the archive for one command and closes it afterwards.
func (a *cli) withArchive(fn func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		c, err := coordinator.Open(a.cfg, a.root, a.logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		if r := c.LoadReport(); r.Reason != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: archive was unreadable (%v), started empty", r.Reason)
			if r.Quarantine != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "; old file kept at %s", r.Quarantine)
			}
			fmt.Fprintln(cmd.ErrOrStderr())
		}
		return fn(cmd, args, c)
	}
}

func (a *cli) browse(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
	return tui.Run(c, a.cfg.ListLimit)
}

func title(out io.Writer, s string) {
	fmt.Fprintln(out, titleStyle.Render(s))
}
