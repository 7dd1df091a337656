// prepass.go — the one-shot pre-pass that populates symbol tables before
// the main parse, per §4.4.
//
// The algorithm (walk tokens with a brace-depth counter, trigger on
// namespace/extern/include/inline/register_var/const, skip everything
// else) is grounded on the original TokenIterator-driven preprocessCode
// this front end was distilled from: namespaces install their pending
// constant identifiers when their closing brace balances, extern blocks
// are skipped by brace counting, and include() recurses into the same
// pre-pass over the loaded text under its canonical name.
package hostjs

import "fmt"

// prepasser carries the mutable pre-pass state: the lexer over one source
// buffer, the shared symbol table, the include loader, and which
// namespace is currently open.
type prepasser struct {
	lex         *Lexer
	sym         *SymbolTable
	loader      IncludeLoader
	current     *Namespace // nil means root
	nsBaseLevel int        // braceLevel value that counts as depth 0 inside current
}

// RunPrePass scans src, registering every namespace's pending constants,
// every register-variable, every inline-function signature, and
// recursively pre-passing any included files, into sym.
func RunPrePass(sym *SymbolTable, loader IncludeLoader, src *Source) error {
	p := &prepasser{lex: NewLexer(src.Text, src.File), sym: sym, loader: loader}
	return p.run()
}

func (p *prepasser) tok() Token { return p.lex.Current() }

func (p *prepasser) advance() error { return p.lex.Advance() }

func (p *prepasser) loc() CodeLocation { return p.lex.loc() }

func (p *prepasser) fail(msg string) error {
	return &SymbolError{Pos: p.loc().Position(), Msg: msg}
}

// run implements the algorithm in §4.4.
func (p *prepasser) run() error {
	if err := p.lex.Err(); err != nil {
		return err
	}

	var pending []string
	pendingLocs := make(map[string]CodeLocation)
	braceLevel := 0

	flushPending := func(ns *Namespace) {
		for _, id := range pending {
			if ns == nil {
				p.sym.RootConstNames = append(p.sym.RootConstNames, id)
				p.sym.RootConstValues[id] = Undeclared
				p.sym.RootConstLocs[id] = pendingLocs[id]
			} else {
				ns.AddConst(id, pendingLocs[id])
			}
		}
		pending = nil
		pendingLocs = make(map[string]CodeLocation)
	}

	for p.tok().Kind != TokEOF {
		switch p.tok().Kind {
		case TokNamespace:
			if p.current != nil {
				return &SymbolError{Pos: p.loc().Position(), Msg: "nesting of namespaces is not allowed"}
			}
			flushPending(p.current)
			if err := p.advance(); err != nil {
				return err
			}
			if p.tok().Kind != TokIdentifier {
				return p.fail("expected identifier after 'namespace'")
			}
			name := p.tok().Value.(string)
			if p.sym.GetNamespace(name) != nil {
				return &SymbolError{Pos: p.loc().Position(), Msg: fmt.Sprintf("duplicate namespace %q", name)}
			}
			if err := p.sym.CheckIfExistsInOtherStorage(StorageNamespace, name, p.loc()); err != nil {
				return err
			}
			p.current = p.sym.CreateNamespace(name)
			p.nsBaseLevel = braceLevel + 1
			if err := p.advance(); err != nil {
				return err
			}
			continue

		case TokExtern:
			if err := p.skipExternBlock(); err != nil {
				return err
			}
			continue

		case TokInclude:
			if err := p.handleInclude(); err != nil {
				return err
			}
			continue

		case TokLBrace:
			braceLevel++
			if err := p.advance(); err != nil {
				return err
			}
			continue

		case TokRBrace:
			braceLevel--
			if err := p.advance(); err != nil {
				return err
			}
			if braceLevel == 0 && p.current != nil {
				flushPending(p.current)
				p.current = nil
			}
			continue

		case TokInline:
			if err := p.preRegisterInlineFunction(); err != nil {
				return err
			}
			continue

		case TokRegisterVar:
			if err := p.preRegisterRegisterVar(); err != nil {
				return err
			}
			continue

		case TokConst:
			atDepthZero := braceLevel == 0
			if p.current != nil {
				atDepthZero = braceLevel == p.nsBaseLevel
			}
			if err := p.handleConst(atDepthZero, &pending, pendingLocs); err != nil {
				return err
			}
			continue

		default:
			if err := p.advance(); err != nil {
				return err
			}
		}
	}

	if p.current != nil {
		return &SymbolError{Pos: p.loc().Position(), Msg: "unclosed namespace at end of file"}
	}
	flushPending(nil)
	return nil
}

func (p *prepasser) handleConst(atDepthZero bool, pending *[]string, pendingLocs map[string]CodeLocation) error {
	if err := p.advance(); err != nil { // consume 'const'
		return err
	}
	if p.tok().Kind == TokVar {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if !atDepthZero {
		return &ConstError{Pos: p.loc().Position(), Msg: "const var declaration must be at brace depth 0"}
	}
	if p.tok().Kind != TokIdentifier {
		return &ConstError{Pos: p.loc().Position(), Msg: "expected identifier for const var declaration"}
	}
	name := p.tok().Value.(string)
	for _, id := range *pending {
		if id == name {
			return &SymbolError{Pos: p.loc().Position(), Msg: fmt.Sprintf("duplicate const var declaration %q", name)}
		}
	}
	if p.current == nil {
		if _, ok := p.sym.RootConstValues[name]; ok {
			return &SymbolError{Pos: p.loc().Position(), Msg: fmt.Sprintf("duplicate const var declaration %q", name)}
		}
	} else if p.current.HasConst(name) {
		return &SymbolError{Pos: p.loc().Position(), Msg: fmt.Sprintf("duplicate const var declaration %q", name)}
	}
	*pending = append(*pending, name)
	pendingLocs[name] = p.loc()
	return p.advance()
}

// preRegisterInlineFunction records name, parameter names, and location
// into the current namespace, then skips the body (the main parse installs
// it later).
func (p *prepasser) preRegisterInlineFunction() error {
	comment := p.lex.LastComment()
	p.lex.ClearLastComment()
	if err := p.advance(); err != nil { // consume 'inline'
		return err
	}
	if p.tok().Kind != TokFunction {
		return p.fail("expected 'function' after 'inline'")
	}
	declLoc := p.loc()
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok().Kind != TokIdentifier {
		return p.fail("expected inline function name")
	}
	name := p.tok().Value.(string)

	targetList := &p.sym.RootInlineFunctions
	if p.current != nil {
		targetList = &p.current.InlineFunctions
	}
	for _, f := range *targetList {
		if f.Name == name {
			return &SymbolError{Pos: p.loc().Position(), Msg: fmt.Sprintf("duplicate inline function %q", name)}
		}
	}
	if err := p.sym.CheckIfExistsInOtherStorage(StorageInlineFunction, name, p.loc()); err != nil {
		return err
	}

	if err := p.advance(); err != nil {
		return err
	}
	if p.tok().Kind != TokLParen {
		return p.fail("expected '(' after inline function name")
	}
	if err := p.advance(); err != nil {
		return err
	}
	var params []string
	for p.tok().Kind != TokRParen {
		if p.tok().Kind != TokIdentifier {
			return p.fail("expected parameter name")
		}
		params = append(params, p.tok().Value.(string))
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok().Kind == TokComma {
			if err := p.advance(); err != nil {
				return err
			}
		}
	}
	if err := p.advance(); err != nil { // consume ')'
		return err
	}

	fn := &InlineFunction{Name: name, Params: params, Comment: comment, DeclaredAt: declLoc}
	*targetList = append(*targetList, fn)

	return p.skipBalancedBraces()
}

// preRegisterRegisterVar records name and reserves a slot, then skips to
// the terminating ';'.
func (p *prepasser) preRegisterRegisterVar() error {
	if err := p.advance(); err != nil { // consume 'register_var'
		return err
	}
	if p.tok().Kind != TokIdentifier {
		return p.fail("expected identifier after 'register_var'")
	}
	name := p.tok().Value.(string)
	loc := p.loc()

	reg := p.sym.RootRegister
	locs := p.sym.RootRegisterLocs
	if p.current != nil {
		reg = p.current.Register
		locs = p.current.RegisterLocs
	}
	if reg.GetRegisterIndex(name) != -1 {
		return &SymbolError{Pos: loc.Position(), Msg: fmt.Sprintf("duplicate register variable %q", name)}
	}
	if err := p.sym.CheckIfExistsInOtherStorage(StorageRegister, name, loc); err != nil {
		return err
	}
	reg.AddRegister(name)
	locs[name] = loc

	depth := 0
	for {
		switch p.tok().Kind {
		case TokEOF:
			return p.fail("unterminated register_var declaration")
		case TokLParen, TokLBracket:
			depth++
		case TokRParen, TokRBracket:
			depth--
		case TokSemicolon:
			if depth == 0 {
				return p.advance()
			}
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
}

func (p *prepasser) skipExternBlock() error {
	if err := p.advance(); err != nil { // consume 'extern'
		return err
	}
	if p.tok().Kind == TokLiteral { // "C"
		if err := p.advance(); err != nil {
			return err
		}
	}
	return p.skipBalancedBraces()
}

// skipBalancedBraces consumes tokens through a matched '{' ... '}' pair,
// tolerating an already-consumed leading identifier/params so it can be
// reused right before the function body or an extern block.
func (p *prepasser) skipBalancedBraces() error {
	if p.tok().Kind != TokLBrace {
		return p.fail("expected '{'")
	}
	depth := 0
	for {
		switch p.tok().Kind {
		case TokEOF:
			return p.fail("unterminated block")
		case TokLBrace:
			depth++
		case TokRBrace:
			depth--
		}
		atClose := p.tok().Kind == TokRBrace && depth == 0
		if err := p.advance(); err != nil {
			return err
		}
		if atClose {
			return nil
		}
	}
}

func (p *prepasser) handleInclude() error {
	at := p.loc()
	if err := p.advance(); err != nil { // consume 'include'
		return err
	}
	if p.tok().Kind != TokLParen {
		return p.fail("expected '(' after 'include'")
	}
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok().Kind != TokLiteral {
		return p.fail("include argument must be a string literal")
	}
	arg, ok := p.tok().Value.(string)
	if !ok {
		return p.fail("include argument must be a string literal")
	}
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok().Kind != TokRParen {
		return p.fail("expected ')' after include argument")
	}
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok().Kind == TokSemicolon {
		if err := p.advance(); err != nil {
			return err
		}
	}

	if p.loader == nil {
		return &IncludeError{Pos: at.Position(), Msg: "no include loader configured", File: arg}
	}
	text, canonical, err := p.loader.Load(arg)
	if err != nil {
		return &IncludeError{Pos: at.Position(), Msg: err.Error(), File: arg}
	}
	if text == "" {
		return nil
	}
	if err := p.sym.MarkIncluded(canonical, at); err != nil {
		return err
	}
	return RunPrePass(p.sym, p.loader, &Source{Text: text, File: canonical})
}
