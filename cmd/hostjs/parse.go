package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a script and print a summary of its symbol tables",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	file := args[0]
	src, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", file, err)
	}

	eng, err := buildEngine(cfgPath)
	if err != nil {
		return err
	}

	if _, err := eng.Parse(string(src), file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Print(summarize(eng))
	return nil
}
