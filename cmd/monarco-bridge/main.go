// Command monarco-bridge exposes Monarco HAT inputs and outputs as HomeKit
// accessories and mirrors their state to MQTT.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
)

var (
	configPath string
	debug      bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "monarco-bridge",
		Short: "Monarco HAT to HomeKit and MQTT bridge",
		Long: `monarco-bridge polls the Monarco HAT digital inputs, drives its analog
outputs, and publishes contact sensors, stateless switches and Lunos fans
as HomeKit accessories. State changes are optionally mirrored to MQTT.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Development logging at debug level")

	root.AddCommand(newRunCmd(), newRegistersCmd(), newConfigCmd())
	return root
}

func newLogger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	return logger
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := config.Load(configPath)
			if err != nil {
				logger.Error("load config", zap.String("path", configPath), zap.Error(err))
				return err
			}
			if err := run(cfg, logger); err != nil {
				logger.Error("fatal", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newRegistersCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "registers",
		Short: "Initialize the controller and print its register table",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			drv, err := newDriver(cfg, logger)
			if err != nil {
				return err
			}
			defer drv.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := drv.Init(ctx); err != nil {
				return fmt.Errorf("init driver: %w", err)
			}
			return printRegisters(cmd.OutOrStdout(), drv.Registers())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Controller init timeout")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func printRegisters(w io.Writer, regs *driver.Registers) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDR\tNAME\tVALUE")

	for _, id := range regs.IDs() {
		v, _ := regs.Get(id)
		fmt.Fprintf(tw, "0x%04x\t%s\t0x%04x (%d)\n", uint16(id), id, v, v)
	}
	return tw.Flush()
}
