// Command hostjs is an offline CLI around the Engine: parse a script and
// report the symbol tables it produced, or drive a line-oriented REPL that
// exercises the parser without evaluating anything (there is no evaluator
// in this front end). Structured as a cobra command tree, grounded on
// a13labs-doxyllm-it/cmd/root.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:     "hostjs",
	Short:   "Parser front end for the embedded scripting dialect",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "hostjs.yaml", "path to the project config file")
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(replCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
