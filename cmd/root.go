package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/weft/api"
	"github.com/agentic-research/weft/internal/coordinator"
	"github.com/agentic-research/weft/internal/dataset"
	"github.com/agentic-research/weft/internal/index"
	"github.com/agentic-research/weft/internal/loader"
	"github.com/agentic-research/weft/internal/query"
)

const version = "0.1.0"

var (
	schemaPath string
	dataDir    string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft: cross-entity correlation index over tenant datasets",
	Long: `Weft builds keyed lookup indices over independently-collected tenant
datasets (accounts, endpoints, groups, collaboration spaces, sites, security
signals) and answers point and join-style queries against them without
re-scanning the raw data.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "Path to correlation schema (.json/.yaml); built-in tenant schema if unset")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "Directory of <dataset>.json payload files")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite collection output to load datasets from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// Stderr: stdout belongs to query output (and to MCP in serve mode).
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadSchema() (*api.Schema, error) {
	if schemaPath == "" {
		return api.Default(), nil
	}
	return api.Load(schemaPath)
}

// engine bundles the wired core for a CLI invocation.
type engine struct {
	schema *api.Schema
	store  *dataset.Store
	coord  *coordinator.Coordinator
	asm    *query.Assembler
	log    *slog.Logger
}

// setupEngine loads the schema and datasets, then builds the first snapshot
// synchronously so one-shot commands query fully-built indices.
func setupEngine() (*engine, error) {
	log := newLogger()
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	store := dataset.NewStore()
	if dataDir != "" {
		n, err := loader.LoadDir(store, dataDir)
		if err != nil {
			return nil, err
		}
		log.Debug("datasets loaded from directory", "dir", dataDir, "count", n)
	}
	if dbPath != "" {
		n, err := loader.LoadSQLite(store, dbPath)
		if err != nil {
			return nil, err
		}
		log.Debug("datasets loaded from sqlite", "db", dbPath, "count", n)
	}
	if dataDir == "" && dbPath == "" {
		return nil, fmt.Errorf("no data source: pass --data and/or --db")
	}

	builder := index.NewBuilder(schema, log)
	coord := coordinator.New(store, builder.Build, log)
	coord.Trigger()
	coord.Wait()

	return &engine{
		schema: schema,
		store:  store,
		coord:  coord,
		asm:    query.NewAssembler(schema, coord),
		log:    log,
	}, nil
}
