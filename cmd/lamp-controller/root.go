package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweeney/lamp-controller/internal/config"
	"github.com/sweeney/lamp-controller/internal/logger"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "lamp-controller",
		Short:         "Relay lamp controller with occupancy-sensor mode",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", config.DefaultFilename, "YAML config file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	f := cmd.Flags()
	f.String("broker", "", "MQTT broker URL")
	f.String("http", "", `HTTP status address ("" keeps the config value)`)
	f.Duration("poll", 0, "sensor polling interval")
	f.Duration("debounce", 0, "sensor debounce duration")
	f.Duration("heartbeat", 0, "snapshot republish interval (0 disables)")
	f.Int("relay-pin", 0, "BCM pin driving the lamp relay")
	f.Int("sensor-pin", 0, "BCM pin reading the occupancy sensor")
	f.String("store", "", "SQLite state file")

	cmd.AddCommand(newStatusCmd(flags), newVersionCmd())
	return cmd
}

// loadConfig reads the config file and environment, then applies any flags
// set on the command line.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lvl, ok := logger.ParseLevel(cfg.LogLevel)
	logger.SetLevel(lvl)
	if !ok {
		logger.Logger().Warnw("unknown log level, using info", "log_level", cfg.LogLevel)
	}

	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			err = apply()
		}
	}

	set("broker", func() (e error) { cfg.MQTT.Broker, e = f.GetString("broker"); return })
	set("http", func() (e error) { cfg.HTTPAddr, e = f.GetString("http"); return })
	set("poll", func() (e error) { cfg.Poll, e = f.GetDuration("poll"); return })
	set("debounce", func() (e error) { cfg.Debounce, e = f.GetDuration("debounce"); return })
	set("heartbeat", func() (e error) { cfg.Heartbeat, e = f.GetDuration("heartbeat"); return })
	set("relay-pin", func() (e error) { cfg.GPIO.RelayPin, e = f.GetInt("relay-pin"); return })
	set("sensor-pin", func() (e error) { cfg.GPIO.SensorPin, e = f.GetInt("sensor-pin"); return })
	set("store", func() (e error) { cfg.Store.Path, e = f.GetString("store"); return })

	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lamp-controller", versionString())
		},
	}
}

func versionString() string {
	c := commit
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (commit: %s)", version, c)
}
