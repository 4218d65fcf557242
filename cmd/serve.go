package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentic-research/weft/internal/loader"
	"github.com/agentic-research/weft/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query surface as MCP tools over stdio",
	Long: `Loads the datasets, builds the index, then serves get_entity,
get_related, get_profile and index_status as MCP tools on stdin/stdout.
While serving, the dataset directory is watched and changed datasets are
reloaded and reindexed; in-flight queries keep the snapshot they started on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := setupEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if dataDir != "" {
			go func() {
				if err := loader.Watch(ctx, eng.store, dataDir, eng.coord.Trigger, eng.log); err != nil && ctx.Err() == nil {
					eng.log.Error("dataset watcher stopped", "err", err)
				}
			}()
		}

		eng.log.Info("serving MCP on stdio", "snapshot_version", eng.coord.Status().SnapshotVersion)
		return mcpserver.New(eng.asm, version).ServeStdio()
	},
}
