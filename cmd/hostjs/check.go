package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file...>",
	Short: "Parse one or more scripts, reporting only pass/fail per file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, file := range args {
		src, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("%s: cannot read: %v\n", file, err)
			failed++
			continue
		}

		eng, err := buildEngine(cfgPath)
		if err != nil {
			return err
		}

		if _, err := eng.Parse(string(src), file); err != nil {
			fmt.Printf("%s: FAIL\n%s\n", file, err)
			failed++
			continue
		}
		fmt.Printf("%s: OK\n", file)
	}
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
