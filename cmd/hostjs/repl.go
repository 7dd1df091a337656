package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	historyFile = ".hostjs_history"
	promptMain  = "hostjs> "
	promptCont  = "     -> "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Parse submitted scripts interactively, one at a time",
	RunE:  runRepl,
}

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

// runRepl reads one script per submission and parses it against a fresh
// Engine each time (there is no evaluator to carry state between
// submissions the way a real interpreter's REPL would).
func runRepl(cmd *cobra.Command, args []string) error {
	fmt.Println("hostjs parser REPL — Ctrl+D to exit, blank line submits")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		src, ok := readSubmission(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(src) == "" {
			continue
		}

		eng, err := buildEngine(cfgPath)
		if err != nil {
			return err
		}
		if _, err := eng.Parse(src, "<repl>"); err != nil {
			fmt.Println(red(err.Error()))
			continue
		}
		fmt.Print(green(summarize(eng)))
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
	}
}

// readSubmission accumulates lines until a blank line is entered, mirroring
// the teacher's multi-line prompt-continuation behavior.
func readSubmission(ln *liner.State) (string, bool) {
	var b strings.Builder
	prompt := promptMain
	for {
		line, err := ln.Prompt(prompt)
		if err != nil { // io.EOF on Ctrl+D, liner.ErrPromptAborted on Ctrl+C
			return b.String(), b.Len() > 0
		}
		if strings.TrimSpace(line) == "" && b.Len() > 0 {
			return b.String(), true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		prompt = promptCont
	}
}
