package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/weft/internal/dataset"
	"github.com/agentic-research/weft/internal/infer"
	"github.com/agentic-research/weft/internal/loader"
)

var inferOut string

func init() {
	inferCmd.Flags().StringVarP(&inferOut, "out", "o", "", "Write the proposed schema to this file (YAML) instead of stdout")
	rootCmd.AddCommand(inferCmd)
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Propose a correlation schema from the datasets themselves",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		store := dataset.NewStore()
		if dataDir != "" {
			if _, err := loader.LoadDir(store, dataDir); err != nil {
				return err
			}
		}
		if dbPath != "" {
			if _, err := loader.LoadSQLite(store, dbPath); err != nil {
				return err
			}
		}
		if store.Version() == 0 {
			return fmt.Errorf("no data source: pass --data and/or --db")
		}

		inf := &infer.Inferrer{Config: infer.DefaultConfig()}
		schema := inf.InferSchema(store.Snapshot())
		log.Info("schema proposed",
			"entities", len(schema.Entities), "relationships", len(schema.Relationships))

		out, err := yaml.Marshal(schema)
		if err != nil {
			return err
		}
		if inferOut != "" {
			return os.WriteFile(inferOut, out, 0o644)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}
