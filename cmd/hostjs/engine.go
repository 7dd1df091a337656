package main

import (
	"fmt"

	"github.com/daios-ai/hostjs"
	"github.com/daios-ai/hostjs/internal/config"
)

// buildEngine loads the project config at cfgPath (if present) and returns
// an Engine with its include loader and stub API classes installed, ready
// to Parse against.
func buildEngine(cfgPath string) (*hostjs.Engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	eng := hostjs.NewEngine()

	var loaders []hostjs.IncludeLoader
	if len(cfg.EmbeddedIncludes) > 0 {
		loaders = append(loaders, &hostjs.EmbeddedIncludeLoader{Files: cfg.EmbeddedIncludes})
	}
	if cfg.IncludeRoot != "" {
		loaders = append(loaders, &hostjs.ProjectIncludeLoader{Root: cfg.IncludeRoot})
	}
	switch len(loaders) {
	case 0:
	case 1:
		eng.SetIncludeLoader(loaders[0])
	default:
		eng.SetIncludeLoader(&hostjs.ChainIncludeLoader{Loaders: loaders})
	}

	for _, stub := range cfg.APIClasses {
		class := &hostjs.APIClass{
			Name:      stub.Name,
			Constants: make(map[string]interface{}),
			Methods:   make(map[string]hostjs.APIMethod),
		}
		for _, c := range stub.Constants {
			class.Constants[c] = hostjs.Undeclared
		}
		for i, m := range stub.Methods {
			class.Methods[m.Name] = hostjs.APIMethod{Index: i, Arity: m.Arity}
		}
		eng.RegisterAPIClass(class)
	}

	return eng, nil
}

// summarize renders a short human-readable report of what a successful
// parse declared, for `hostjs parse` and `hostjs repl`.
func summarize(eng *hostjs.Engine) string {
	sym := eng.SymbolTable()
	out := fmt.Sprintf("root: %d const(s), %d register(s), %d inline function(s), %d var(s)\n",
		len(sym.RootConstNames), sym.RootRegister.NumUsedRegisters(), len(sym.RootInlineFunctions), len(sym.RootVars))
	for name, ns := range sym.Namespaces {
		out += fmt.Sprintf("namespace %s: %d const(s), %d register(s), %d inline function(s)\n",
			name, len(ns.ConstNames), ns.Register.NumUsedRegisters(), len(ns.InlineFunctions))
	}
	out += fmt.Sprintf("globals: %d, external C functions: %d, included files: %d\n",
		len(sym.Globals), len(sym.ExternalC), len(sym.IncludedFiles))
	return out
}
