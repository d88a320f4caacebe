package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"replicafs/pkg/config"
	"replicafs/pkg/metrics"
	"replicafs/pkg/provider/factory"
	"replicafs/pkg/server/node"
)

var nodeFlagKeys = map[string]string{
	"listen": "node.listen",
	"name":   "node.name",
	"type":   "node.type",
	"path":   "node.path",
}

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Start a storage node",
		Long: `Start a storage node serving one local provider over HTTP. Gateways reach
it through a provider of type "remote".`,
		RunE: runNode,
	}

	flags := cmd.Flags()
	flags.String("listen", ":9090", "address the node listens on")
	flags.String("name", "node", "node name")
	flags.String("type", config.TypeDisk, "local provider type (memory, disk, sqlite)")
	flags.String("path", "data", "storage directory (disk) or database file (sqlite)")
	flags.Bool("flush", true, "run sync(1) after shutdown")
	return cmd
}

func runNode(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, nodeFlagKeys)
	if err != nil {
		return err
	}

	p, err := factory.BuildNode(cfg.Node)
	if err != nil {
		return err
	}
	flush, _ := cmd.Flags().GetBool("flush")

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := node.New(node.Config{
		Name:            cfg.Node.Name,
		Version:         Version,
		Provider:        p,
		Metrics:         metrics.NewRecorder(),
		FlushOnShutdown: flush && cfg.Node.Type != config.TypeMemory,
	})
	return srv.Start(ctx, cfg.Node.Listen)
}
