package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd, relatedCmd, profileCmd, statusCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var getCmd = &cobra.Command{
	Use:   "get [type] [key]",
	Short: "Look up one entity by primary or alternate key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := setupEngine()
		if err != nil {
			return err
		}
		ent, ok := eng.asm.GetByKey(args[0], args[1])
		if !ok {
			return fmt.Errorf("%s %q: not found", args[0], args[1])
		}
		return printJSON(ent)
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related [type] [key] [relationship]",
	Short: "Traverse one declared relationship from an entity",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := setupEngine()
		if err != nil {
			return err
		}
		return printJSON(eng.asm.GetRelated(args[0], args[1], args[2]))
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile [type] [key] [profile]",
	Short: "Assemble a declared composite profile rooted at one entity",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := setupEngine()
		if err != nil {
			return err
		}
		p, ok := eng.asm.GetProfile(args[0], args[1], args[2])
		if !ok {
			return fmt.Errorf("%s %q: not found", args[0], args[1])
		}
		return printJSON(p)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report coordinator state, snapshot version and build warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := setupEngine()
		if err != nil {
			return err
		}
		return printJSON(eng.asm.Status())
	},
}
