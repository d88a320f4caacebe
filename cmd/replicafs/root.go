package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"replicafs/pkg/config"
	"replicafs/pkg/log"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "replicafs",
		Short: "replicated file storage across independent providers",
		Long: fmt.Sprintf(`replicafs (v%s)

Stores every file on several independent storage providers, reads it back
from the healthiest one and keeps track of provider health.`, Version),
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	root.AddCommand(newServeCmd(), newNodeCmd(), newBenchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of replicafs",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("replicafs v%s\n", Version)
		},
	}
}

// loadConfig reads the configuration with cmd's flags bound over every other source.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.LoadOptions{File: file, Flags: cmd.Flags(), FlagKeys: flagKeys})
	if err != nil {
		return nil, err
	}

	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	log.SetJSON(cfg.LogJSON)
	return cfg, nil
}

func setupLogging(cmd *cobra.Command) error {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	log.SetJSON(jsonLogs)
	return log.SetLevel(level)
}
