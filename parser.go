// parser.go — ExpressionTreeBuilder: the recursive-descent parser.
//
// Statement dispatch order, expression precedence layering (with the
// logical/bitwise operators folded into one level, per the original this
// front end was distilled from), factor resolution order, and the
// for-in/switch-fallthrough detection rules all follow §4.5 exactly. The
// symbol tables are threaded through as an explicit mutable-borrow field
// on Parser rather than a process-wide global, per the REDESIGN FLAGS.
package hostjs

import "fmt"

// Parser is the ExpressionTreeBuilder: one instance parses one Source
// against a shared SymbolTable already populated by RunPrePass.
type Parser struct {
	lex    *Lexer
	sym    *SymbolTable
	loader IncludeLoader
	src    *Source

	nsScope               *Namespace      // enclosing "namespace X { ... }" during main parse, nil at root
	currentInlineFunction *InlineFunction // non-nil while parsing an inline function body
	currentCallback       *Callback       // non-nil while parsing a callback body
	currentIteratorName   string          // non-empty while parsing a for-in loop body
}

// NewParser constructs a parser over src using tables already populated by
// RunPrePass(sym, loader, src).
func NewParser(sym *SymbolTable, loader IncludeLoader, src *Source) *Parser {
	return &Parser{lex: NewLexer(src.Text, src.File), sym: sym, loader: loader, src: src}
}

func (p *Parser) tok() Token        { return p.lex.Current() }
func (p *Parser) loc() CodeLocation { return p.lex.loc() }

func (p *Parser) advance() error { return p.lex.Advance() }

func (p *Parser) fail(msg string) error { return p.loc().ThrowError(msg) }

func (p *Parser) expect(k TokenKind) error {
	if p.tok().Kind != k {
		return p.fail(fmt.Sprintf("found %v when expecting %v", p.tok().Kind, k))
	}
	return p.advance()
}

func (p *Parser) matchIf(k TokenKind) (bool, error) {
	if p.tok().Kind == k {
		return true, p.advance()
	}
	return false, nil
}

func (p *Parser) expectIdentifier() (string, CodeLocation, error) {
	loc := p.loc()
	if p.tok().Kind != TokIdentifier {
		return "", loc, p.fail("expected identifier")
	}
	name := p.tok().Value.(string)
	return name, loc, p.advance()
}

// ParseProgram parses src fully into a Program.
func (p *Parser) ParseProgram() (*Program, error) {
	block, err := p.parseStatementList(true)
	if err != nil {
		return nil, err
	}
	return &Program{Block: block, Src: p.src}, nil
}

// parseStatementList consumes statements until '}' (nested) or EOF
// (top-level), hoisting lock statements into the returned block's Locks,
// per §4.5.
func (p *Parser) parseStatementList(topLevel bool) (*BlockStatement, error) {
	if err := p.lex.Err(); err != nil {
		return nil, err
	}
	loc := p.loc()
	blk := &BlockStatement{base: base{loc}}
	for {
		if topLevel && p.tok().Kind == TokEOF {
			break
		}
		if !topLevel && p.tok().Kind == TokRBrace {
			break
		}
		if !topLevel && p.tok().Kind == TokEOF {
			return nil, p.fail("unexpected end of file, expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			continue
		}
		if lock, ok := stmt.(*LockStatement); ok {
			blk.Locks = append(blk.Locks, lock)
			continue
		}
		blk.Statements = append(blk.Statements, stmt)
	}
	return blk, nil
}

func (p *Parser) parseBlock() (*BlockStatement, error) {
	if err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	blk, err := p.parseStatementList(false)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return blk, nil
}

// parseStatement dispatches in the first-match order from §4.5.
func (p *Parser) parseStatement() (Statement, error) {
	loc := p.loc()
	switch p.tok().Kind {
	case TokInclude:
		return p.parseIncludeStatement()
	case TokInline:
		return p.parseInlineFunctionStatement()
	case TokLBrace:
		return p.parseBlock()
	case TokConst:
		return p.parseConstVarStatement()
	case TokVar:
		return p.parseVarStatement()
	case TokReg:
		return p.parseRegisterAssignStatement()
	case TokRegisterVar:
		return p.parseRegisterVarStatement()
	case TokGlobal:
		return p.parseGlobalVarStatement()
	case TokLocal:
		return p.parseLocalVarStatement()
	case TokNamespace:
		return p.parseNamespaceStatement()
	case TokIf:
		return p.parseIfStatement()
	case TokWhile:
		return p.parseWhileStatement()
	case TokDo:
		return p.parseDoWhileStatement()
	case TokFor:
		return p.parseForStatement()
	case TokReturn:
		return p.parseReturnLike(loc, func(v Expression) Statement { return &ReturnStatement{base{loc}, v} })
	case TokSwitch:
		return p.parseSwitchStatement()
	case TokBreak:
		return p.parseReturnLike(loc, func(v Expression) Statement { return &BreakStatement{base{loc}, v} })
	case TokContinue:
		return p.parseReturnLike(loc, func(v Expression) Statement { return &ContinueStatement{base{loc}, v} })
	case TokFunction:
		return p.parseFunctionOrCallback()
	case TokExtern:
		return p.parseExternCBlock()
	case TokSemicolon:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &EmptyStatement{base{loc}}, nil
	case TokRLock, TokWLock:
		return p.parseLockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseExpressionStatement() (Statement, error) {
	loc := p.loc()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &ExpressionStatement{base{loc}, expr}, nil
}

// parseReturnLike handles return/break/continue, all of which optionally
// carry a value expression before the terminating ';'.
func (p *Parser) parseReturnLike(loc CodeLocation, build func(Expression) Statement) (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var val Expression
	if p.tok().Kind != TokSemicolon {
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		val = v
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return build(val), nil
}

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

func (p *Parser) parseVarStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // consume 'var'
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if p.sym.RootVars[name] {
		return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("identifier %q already exists in root scope", name)}
	}
	if err := p.sym.CheckIfExistsInOtherStorage(StorageRootScope, name, idLoc); err != nil {
		return nil, err
	}
	p.sym.RootVars[name] = true
	init, err := p.parseOptionalInitializer()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &VarStatement{base{loc}, name, init}, nil
}

func (p *Parser) parseOptionalInitializer() (Expression, error) {
	if ok, err := p.matchIf(TokAssign); err != nil {
		return nil, err
	} else if ok {
		return p.parseExpression()
	}
	return nil, nil
}

// parseConstVarStatement re-visits a namespace slot the pre-pass already
// reserved; the AST carries the namespace + name so the evaluator can
// overwrite the "undeclared" sentinel on first execution.
func (p *Parser) parseConstVarStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'const'
		return nil, err
	}
	if ok, err := p.matchIf(TokVar); err != nil {
		return nil, err
	} else {
		_ = ok
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	ns := p.nsScope
	if ns == nil {
		if !contains(p.sym.RootConstNames, name) {
			return nil, &ConstError{Pos: idLoc.Position(), Msg: fmt.Sprintf("const var %q was not reserved by the pre-pass", name)}
		}
	} else if !ns.HasConst(name) {
		return nil, &ConstError{Pos: idLoc.Position(), Msg: fmt.Sprintf("const var %q was not reserved by the pre-pass", name)}
	}
	init, err := p.parseOptionalInitializer()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &ConstVarStatement{base{loc}, ns, name, init}, nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// parseRegisterVarStatement re-visits a register slot the pre-pass already
// reserved (mirroring parseConstVarStatement for `const var`), optionally
// giving it an initial value.
func (p *Parser) parseRegisterVarStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'register_var'
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	reg := p.sym.RootRegister
	if p.nsScope != nil {
		reg = p.nsScope.Register
	}
	idx := reg.GetRegisterIndex(name)
	if idx == -1 {
		return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("register variable %q was not reserved by the pre-pass", name)}
	}
	init, err := p.parseOptionalInitializer()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &RegisterVarStatement{base{loc}, p.nsScope, name, idx, init}, nil
}

// parseRegisterAssignStatement is `reg name = init;`, referencing a slot
// the pre-pass already reserved via `register_var`.
func (p *Parser) parseRegisterAssignStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'reg'
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	reg := p.sym.RootRegister
	if p.nsScope != nil {
		reg = p.nsScope.Register
	}
	idx := reg.GetRegisterIndex(name)
	if idx == -1 {
		return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("register variable %q was not declared with register_var", name)}
	}
	init, err := p.parseOptionalInitializer()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &RegisterVarStatement{base{loc}, p.nsScope, name, idx, init}, nil
}

func (p *Parser) parseGlobalVarStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.sym.CheckIfExistsInOtherStorage(StorageGlobal, name, idLoc); err != nil {
		return nil, err
	}
	if !p.sym.HasGlobal(name) {
		p.sym.RegisterGlobal(name, nil)
	}
	init, err := p.parseOptionalInitializer()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &GlobalVarStatement{base{loc}, name, init}, nil
}

// parseLocalVarStatement is legal only inside an inline function body or a
// callback body, per the invariants in §3.
func (p *Parser) parseLocalVarStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	switch {
	case p.currentInlineFunction != nil:
		fn := p.currentInlineFunction
		if fn.ParamIndex(name) != -1 || fn.LocalIndex(name) != -1 {
			return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("local %q already exists in local scope", name)}
		}
		if err := p.sym.CheckIfExistsInOtherStorage(StorageLocalScope, name, idLoc); err != nil {
			return nil, err
		}
		fn.Locals = append(fn.Locals, name)
	case p.currentCallback != nil:
		cb := p.currentCallback
		if cb.HasParam(name) || cb.HasLocal(name) {
			return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("local %q already exists in local scope", name)}
		}
		cb.Locals = append(cb.Locals, name)
	default:
		return nil, &SymbolError{Pos: idLoc.Position(), Msg: "'local var' is only legal inside an inline function or callback body"}
	}
	init, err := p.parseOptionalInitializer()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &LocalVarStatement{base{loc}, name, init}, nil
}

// parseNamespaceStatement reopens a namespace whose symbol table was
// already populated by the pre-pass; nesting is rejected by the pre-pass,
// so ns.Namespace lookup here cannot recurse.
func (p *Parser) parseNamespaceStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	ns := p.sym.GetNamespace(name)
	if ns == nil {
		return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("unknown namespace %q", name)}
	}
	prev := p.nsScope
	p.nsScope = ns
	body, err := p.parseBlock()
	p.nsScope = prev
	if err != nil {
		return nil, err
	}
	return &NamespaceStatement{base{loc}, ns, body}, nil
}

// parseInlineFunctionStatement installs a body onto the InlineFunction
// object the pre-pass already registered (by name, in the current
// namespace scope). Inline functions may not be nested.
func (p *Parser) parseInlineFunctionStatement() (Statement, error) {
	loc := p.loc()
	if p.currentInlineFunction != nil {
		return nil, p.fail("inline functions may not be nested")
	}
	if err := p.advance(); err != nil { // 'inline'
		return nil, err
	}
	if err := p.expect(TokFunction); err != nil {
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	list := p.sym.RootInlineFunctions
	if p.nsScope != nil {
		list = p.nsScope.InlineFunctions
	}
	var fn *InlineFunction
	for _, f := range list {
		if f.Name == name {
			fn = f
			break
		}
	}
	if fn == nil {
		return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("inline function %q was not registered by the pre-pass", name)}
	}
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	for p.tok().Kind != TokRParen {
		if _, _, err := p.expectIdentifier(); err != nil {
			return nil, err
		}
		if p.tok().Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // ')'
		return nil, err
	}
	p.currentInlineFunction = fn
	body, err := p.parseBlock()
	p.currentInlineFunction = nil
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return &InlineFunctionStatement{base{loc}, fn}, nil
}

// parseFunctionOrCallback specialises to a callback definition when name
// matches a registered callback, else declares a named function.
func (p *Parser) parseFunctionOrCallback() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'function'
		return nil, err
	}
	name, idLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if cb := p.sym.GetCallback(name); cb != nil {
		params, err := p.parseParamList()
		if err != nil {
			return nil, err
		}
		if len(params) != cb.Arity {
			return nil, &ArityError{Pos: idLoc.Position(), Callee: name, Got: len(params), Expected: cb.Arity}
		}
		cb.Params = params
		prev := p.currentCallback
		p.currentCallback = cb
		body, err := p.parseBlock()
		p.currentCallback = prev
		if err != nil {
			return nil, err
		}
		cb.Body = body
		return &CallbackDefinitionStatement{base{loc}, cb}, nil
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDeclarationStatement{base{loc}, name, params, body}, nil
}

func (p *Parser) parseParamList() ([]string, error) {
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var params []string
	for p.tok().Kind != TokRParen {
		name, _, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		params = append(params, name)
		if p.tok().Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return params, p.advance()
}

// parseExternCBlock captures each declared function's raw source verbatim
// by brace-depth tracking, per §6.
func (p *Parser) parseExternCBlock() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'extern'
		return nil, err
	}
	if p.tok().Kind != TokLiteral {
		return nil, p.fail(`expected "C" after extern`)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	var last Statement
	for p.tok().Kind != TokRBrace {
		fnLoc := p.loc()
		comment := p.lex.LastComment()
		p.lex.ClearLastComment()
		hasReturnType := false
		switch p.tok().Kind {
		case TokVoid:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case TokVar:
			hasReturnType = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		default:
			return nil, p.fail("expected 'void' or 'var' return type in extern \"C\" function")
		}
		name, _, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		var params []string
		for p.tok().Kind != TokRParen {
			if err := p.expect(TokVar); err != nil {
				return nil, err
			}
			pname, _, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			params = append(params, pname)
			if p.tok().Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if err := p.advance(); err != nil { // ')'
			return nil, err
		}
		bodyStart := p.lex.pos
		bodyEnd, err := p.skipRawBraceBody()
		if err != nil {
			return nil, err
		}
		raw := p.src.Text[bodyStart:bodyEnd]
		f := &ExternalCFunction{Name: name, HasReturnType: hasReturnType, Params: params, RawSource: raw, Comment: comment}
		p.sym.AddExternalCFunction(f)
		last = &ExternalCFunctionStatement{base{fnLoc}, f}
	}
	if err := p.advance(); err != nil { // outer '}'
		return nil, err
	}
	if last == nil {
		return &EmptyStatement{base{loc}}, nil
	}
	return last, nil
}

// skipRawBraceBody advances the lexer's cursor past a matched '{' ... '}'
// pair without producing tokens for its contents (they are captured
// verbatim from the source), and returns the byte offset just past the
// closing brace — recorded before the trailing advance past it, which
// otherwise leaves p.lex.pos past whatever token follows the body.
func (p *Parser) skipRawBraceBody() (int, error) {
	if p.tok().Kind != TokLBrace {
		return 0, p.fail("expected '{'")
	}
	depth := 0
	for {
		switch p.tok().Kind {
		case TokEOF:
			return 0, p.fail("unterminated extern \"C\" function body")
		case TokLBrace:
			depth++
		case TokRBrace:
			depth--
		}
		atClose := p.tok().Kind == TokRBrace && depth == 0
		endPos := p.lex.pos
		if err := p.advance(); err != nil {
			return 0, err
		}
		if atClose {
			return endPos, nil
		}
	}
}

// parseLockStatement is `rLock(expr);` / `wLock(expr);`.
func (p *Parser) parseLockStatement() (Statement, error) {
	loc := p.loc()
	write := p.tok().Kind == TokWLock
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	target, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &LockStatement{base{loc}, write, target}, nil
}

// parseIncludeStatement fetches, nested-parses, and splices the included
// file's statement list into the outer AST, per §4.7. It does not touch the
// included-file set: the pre-pass already recorded the file there.
func (p *Parser) parseIncludeStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'include'
		return nil, err
	}
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	if p.tok().Kind != TokLiteral {
		return nil, p.fail("include argument must be a string literal")
	}
	arg, ok := p.tok().Value.(string)
	if !ok {
		return nil, p.fail("include argument must be a string literal")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}

	if p.loader == nil {
		return nil, &IncludeError{Pos: loc.Position(), Msg: "no include loader configured", File: arg}
	}
	text, canonical, err := p.loader.Load(arg)
	if err != nil {
		return nil, &IncludeError{Pos: loc.Position(), Msg: err.Error(), File: arg}
	}
	if text == "" {
		return &EmptyStatement{base{loc}}, nil
	}
	nested := NewParser(p.sym, p.loader, &Source{Text: text, File: canonical})
	block, err := nested.parseStatementList(true)
	if err != nil {
		p.sym.SetIncludeError(canonical, err.Error())
		return nil, err
	}
	return &IncludeStatement{base{loc}, arg, block}, nil
}

// ---------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------

func (p *Parser) parseIfStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, then, err := p.parseCondAndBody()
	if err != nil {
		return nil, err
	}
	stmt := &IfStatement{base: base{loc}, Cond: cond, Then: then}
	for p.tok().Kind == TokElse {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok().Kind == TokIf {
			if err := p.advance(); err != nil {
				return nil, err
			}
			c, b, err := p.parseCondAndBody()
			if err != nil {
				return nil, err
			}
			stmt.Elifs = append(stmt.Elifs, ElifArm{Cond: c, Then: b})
			continue
		}
		elseBody, err := p.parseBodyStatement()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
		break
	}
	return stmt, nil
}

func (p *Parser) parseCondAndBody() (Expression, Statement, error) {
	if err := p.expect(TokLParen); err != nil {
		return nil, nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, nil, err
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, nil, err
	}
	body, err := p.parseBodyStatement()
	if err != nil {
		return nil, nil, err
	}
	return cond, body, nil
}

// parseBodyStatement parses the body of an if/loop: a brace block when the
// next token is '{', otherwise a single statement, mirroring parseStatement
// itself. This dialect allows braceless single-statement bodies throughout.
func (p *Parser) parseBodyStatement() (Statement, error) {
	if p.tok().Kind == TokLBrace {
		blk, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return blk, nil
	}
	return p.parseStatement()
}

func (p *Parser) parseWhileStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, body, err := p.parseCondAndBody()
	if err != nil {
		return nil, err
	}
	return &WhileStatement{base{loc}, cond, body}, nil
}

func (p *Parser) parseDoWhileStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBodyStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokWhile); err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &DoWhileStatement{base{loc}, body, cond}, nil
}

// parseForStatement detects for-in per §4.5: after '(', a bare iterator
// identifier immediately followed by `in` makes this a for-in loop with
// the following expression as the iterable. `for (var ...)` never
// qualifies (for-in never declares its iterator with `var`), so this
// check only fires on an identifier with no preceding `var`. Anything
// else is a classic C-for, and the identifier lookahead is rewound so
// parseForClauseStatement sees a clean, unconsumed token stream.
func (p *Parser) parseForStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}

	if p.tok().Kind == TokIdentifier {
		name := p.tok().Value.(string)
		save := *p.lex
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok().Kind == TokIn {
			if err := p.advance(); err != nil {
				return nil, err
			}
			iterable, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRParen); err != nil {
				return nil, err
			}
			prevIter := p.currentIteratorName
			p.currentIteratorName = name
			body, err := p.parseBodyStatement()
			p.currentIteratorName = prevIter
			if err != nil {
				return nil, err
			}
			return &ForInStatement{base{loc}, name, iterable, body}, nil
		}
		*p.lex = save
	}

	init, err := p.parseForClauseStatement()
	if err != nil {
		return nil, err
	}
	var cond Expression
	if p.tok().Kind != TokSemicolon {
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	var step Statement
	if p.tok().Kind != TokRParen {
		stepExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		step = &ExpressionStatement{base{p.loc()}, stepExpr}
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBodyStatement()
	if err != nil {
		return nil, err
	}
	return &ForStatement{base{loc}, init, cond, step, body}, nil
}

// parseForClauseStatement parses the `init;` clause of a classic C-for,
// which may be a `var` declaration or a bare expression, terminated by the
// ';' that parseForStatement's caller expects to already have been
// consumed by this helper.
func (p *Parser) parseForClauseStatement() (Statement, error) {
	loc := p.loc()
	if p.tok().Kind == TokSemicolon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if p.tok().Kind == TokVar {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, idLoc, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if p.sym.RootVars[name] {
			return nil, &SymbolError{Pos: idLoc.Position(), Msg: fmt.Sprintf("identifier %q already exists in root scope", name)}
		}
		if err := p.sym.CheckIfExistsInOtherStorage(StorageRootScope, name, idLoc); err != nil {
			return nil, err
		}
		p.sym.RootVars[name] = true
		init, err := p.parseOptionalInitializer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokSemicolon); err != nil {
			return nil, err
		}
		return &VarStatement{base{loc}, name, init}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &ExpressionStatement{base{loc}, expr}, nil
}

// parseSwitchStatement merges fall-through: a case with an empty body
// accumulates its condition into a pending list that attaches to the next
// non-empty case, per §4.5.
func (p *Parser) parseSwitchStatement() (Statement, error) {
	loc := p.loc()
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	stmt := &SwitchStatement{base: base{loc}, Subject: subject}
	var pending []Expression
	for p.tok().Kind != TokRBrace {
		switch p.tok().Kind {
		case TokCase:
			if err := p.advance(); err != nil {
				return nil, err
			}
			cond, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokColon); err != nil {
				return nil, err
			}
			pending = append(pending, cond)
			body, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			if len(body.Statements) == 0 && len(body.Locks) == 0 {
				continue
			}
			stmt.Cases = append(stmt.Cases, &SwitchCase{Conditions: pending, Body: body})
			pending = nil
		case TokDefault:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expect(TokColon); err != nil {
				return nil, err
			}
			body, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			stmt.Default = body
		default:
			return nil, p.fail("expected 'case' or 'default' inside switch")
		}
	}
	if err := p.advance(); err != nil { // '}'
		return nil, err
	}
	return stmt, nil
}

// parseCaseBody consumes statements until the next case/default/closing
// brace, without requiring its own braces.
func (p *Parser) parseCaseBody() (*BlockStatement, error) {
	loc := p.loc()
	blk := &BlockStatement{base: base{loc}}
	for p.tok().Kind != TokCase && p.tok().Kind != TokDefault && p.tok().Kind != TokRBrace {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if lock, ok := stmt.(*LockStatement); ok {
			blk.Locks = append(blk.Locks, lock)
			continue
		}
		blk.Statements = append(blk.Statements, stmt)
	}
	return blk, nil
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

func (p *Parser) parseExpression() (Expression, error) { return p.parseAssignment() }

var assignOps = map[TokenKind]string{
	TokAssign:  "=",
	TokPlusEq:  "+=",
	TokMinusEq: "-=",
	TokShlEq:   "<<=",
	TokShrEq:   ">>=",
}

func (p *Parser) parseAssignment() (Expression, error) {
	lhs, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.tok().Kind]; ok {
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAssignment() // right-associative
		if err != nil {
			return nil, err
		}
		return &Assignment{base{loc}, op, lhs, rhs}, nil
	}
	return lhs, nil
}

func (p *Parser) parseTernary() (Expression, error) {
	cond, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if p.tok().Kind == TokQuestion {
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		thenExpr, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokColon); err != nil {
			return nil, err
		}
		elseExpr, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &TernaryOp{base{loc}, cond, thenExpr, elseExpr}, nil
	}
	return cond, nil
}

var logicalOps = map[TokenKind]string{
	TokAndAnd: "&&", TokOrOr: "||", TokAnd: "&", TokOr: "|", TokXor: "^",
}

// parseLogical folds &&, ||, &, |, ^ into a single left-associative layer,
// matching this dialect's deviation from C/JS precedence (§4.5, §9).
func (p *Parser) parseLogical() (Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := logicalOps[p.tok().Kind]
		if !ok {
			return left, nil
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{base{loc}, op, left, right}
	}
}

var comparisonOps = map[TokenKind]string{
	TokEq: "==", TokNeq: "!=", TokStrictEq: "===", TokStrictNeq: "!==",
	TokLt: "<", TokLe: "<=", TokGt: ">", TokGe: ">=",
}

func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.tok().Kind]
		if !ok {
			return left, nil
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{base{loc}, op, left, right}
	}
}

var shiftOps = map[TokenKind]string{TokShl: "<<", TokShr: ">>", TokUShr: ">>>"}

func (p *Parser) parseShift() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := shiftOps[p.tok().Kind]
		if !ok {
			return left, nil
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{base{loc}, op, left, right}
	}
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok().Kind == TokPlus || p.tok().Kind == TokMinus {
		op := "+"
		if p.tok().Kind == TokMinus {
			op = "-"
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{base{loc}, op, left, right}
	}
	return left, nil
}

var mulOps = map[TokenKind]string{TokStar: "*", TokSlash: "/", TokPercent: "%"}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := mulOps[p.tok().Kind]
		if !ok {
			return left, nil
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{base{loc}, op, left, right}
	}
}

// parseUnary: unary minus binds tighter than binary minus because it is
// parsed one precedence layer below additive, per §8.
func (p *Parser) parseUnary() (Expression, error) {
	loc := p.loc()
	switch p.tok().Kind {
	case TokMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{base{loc}, "-", operand}, nil
	case TokNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{base{loc}, "!", operand}, nil
	case TokPlusPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &PreIncDec{base{loc}, "++", operand}, nil
	case TokMinusMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &PreIncDec{base{loc}, "--", operand}, nil
	case TokTypeof:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{base{loc}, "typeof", operand}, nil
	default:
		return p.parseFactorWithSuffixes()
	}
}

func (p *Parser) parseFactorWithSuffixes() (Expression, error) {
	expr, err := p.parseFactor(nil)
	if err != nil {
		return nil, err
	}
	return p.parseSuffixes(expr)
}

// parseSuffixes chains .id, (args), [expr], and postfix ++/-- onto expr.
func (p *Parser) parseSuffixes(expr Expression) (Expression, error) {
	for {
		loc := p.loc()
		switch p.tok().Kind {
		case TokDot:
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, _, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			expr = &DotOperator{base{loc}, expr, name}
		case TokLParen:
			args, err := p.parseArgumentList()
			if err != nil {
				return nil, err
			}
			expr = &Call{base{loc}, expr, args}
		case TokLBracket:
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRBracket); err != nil {
				return nil, err
			}
			expr = &Subscript{base{loc}, expr, idx}
		case TokPlusPlus:
			if err := p.advance(); err != nil {
				return nil, err
			}
			expr = &PostIncDec{base{loc}, "++", expr}
		case TokMinusMinus:
			if err := p.advance(); err != nil {
				return nil, err
			}
			expr = &PostIncDec{base{loc}, "--", expr}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgumentList() ([]Expression, error) {
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var args []Expression
	for p.tok().Kind != TokRParen {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.tok().Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return args, p.advance()
}

// parseFactor implements the factor-resolution order from §4.5. ns is the
// namespace scope inherited from one level of `A.` qualification, or from
// nsScope when unqualified and the parser is currently inside that
// namespace's own reopened body.
func (p *Parser) parseFactor(ns *Namespace) (Expression, error) {
	if p.nsScope != nil && ns == nil {
		ns = p.nsScope
	}

	switch p.tok().Kind {
	case TokIdentifier:
		return p.parseIdentifierFactor(ns)
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokTrue:
		loc := p.loc()
		return &LiteralValue{base{loc}, true}, p.advance()
	case TokFalse:
		loc := p.loc()
		return &LiteralValue{base{loc}, false}, p.advance()
	case TokNull:
		loc := p.loc()
		return &LiteralValue{base{loc}, nil}, p.advance()
	case TokUndefined:
		loc := p.loc()
		return &LiteralValue{base{loc}, Undefined{}}, p.advance()
	case TokLiteral:
		loc := p.loc()
		v := p.tok().Value
		return &LiteralValue{base{loc}, v}, p.advance()
	case TokLBrace:
		return p.parseObjectLiteral()
	case TokLBracket:
		return p.parseArrayLiteral()
	case TokFunction:
		return p.parseFunctionExpression()
	case TokNew:
		return p.parseNewExpression()
	default:
		return nil, p.fail(fmt.Sprintf("found %v when expecting an expression", p.tok().Kind))
	}
}

// parseIdentifierFactor implements the six-rule resolution order in §4.5.
func (p *Parser) parseIdentifierFactor(ns *Namespace) (Expression, error) {
	loc := p.loc()
	id := p.tok().Value.(string)

	// Rule 1: current for-in iterator.
	if p.currentIteratorName != "" && id == p.currentIteratorName {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &IteratorName{base{loc}, id}, nil
	}

	// Rule 2: inline-function params/locals.
	if fn := p.currentInlineFunction; fn != nil {
		if idx := fn.ParamIndex(id); idx != -1 {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &ParameterReference{base{loc}, fn, idx}, nil
		}
		if fn.LocalIndex(id) != -1 {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &LocalReference{base{loc}, fn, id}, nil
		}
	}

	// Rule 3: exactly one level of namespace qualification.
	if ns == nil {
		if nsFor := p.sym.GetNamespace(id); nsFor != nil {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expect(TokDot); err != nil {
				return nil, err
			}
			return p.parseIdentifierFactor(nsFor)
		}
	}

	// Rule 4: inline-function catalog -> API class -> const pool ->
	// external-C -> register file -> global property bag.
	inlineList := p.sym.RootInlineFunctions
	register := p.sym.RootRegister
	constNames := p.sym.RootConstValues
	if ns != nil {
		inlineList = ns.InlineFunctions
		register = ns.Register
		constNames = ns.ConstValues
	}
	for _, fn := range inlineList {
		if fn.Name == id {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return p.parseInlineFunctionCall(fn)
		}
	}
	if cls, ok := p.sym.APIClasses[id]; ok && ns == nil {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseAPICall(cls)
	}
	if _, ok := constNames[id]; ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ConstReference{base{loc}, ns, id}, nil
	}
	if ns == nil {
		if idx := p.sym.GetExternalCIndex(id); idx != -1 {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return p.parseExternalCCall(id, idx)
		}
	}
	if idx := register.GetRegisterIndex(id); idx != -1 {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &RegisterReference{base{loc}, ns, id, idx}, nil
	}
	if ns == nil && p.sym.HasGlobal(id) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &GlobalReference{base{loc}, id}, nil
	}

	// Rule 5: callback parameter/local bag.
	if cb := p.currentCallback; cb != nil {
		if cb.HasParam(id) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &CallbackParameterReference{base{loc}, cb, id}, nil
		}
		if cb.HasLocal(id) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &CallbackLocalReference{base{loc}, cb, id}, nil
		}
	}

	// Rule 6: fallback.
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &UnqualifiedName{base{loc}, id}, nil
}

func (p *Parser) parseInlineFunctionCall(fn *InlineFunction) (Expression, error) {
	loc := p.loc()
	args, err := p.parseArgumentList()
	if err != nil {
		return nil, err
	}
	if len(args) != len(fn.Params) {
		return nil, &ArityError{Pos: loc.Position(), Callee: fn.Name, Got: len(args), Expected: len(fn.Params)}
	}
	return &InlineFunctionCall{base{loc}, fn, args}, nil
}

func (p *Parser) parseAPICall(cls *APIClass) (Expression, error) {
	loc := p.loc()
	if err := p.expect(TokDot); err != nil {
		return nil, err
	}
	method, methodLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	m, ok := cls.Methods[method]
	if !ok {
		return nil, &SymbolError{Pos: methodLoc.Position(), Msg: fmt.Sprintf("%s has no method %q", cls.Name, method)}
	}
	args, err := p.parseArgumentList()
	if err != nil {
		return nil, err
	}
	if len(args) != m.Arity {
		return nil, &ArityError{Pos: loc.Position(), Callee: fmt.Sprintf("%s.%s", cls.Name, method), Got: len(args), Expected: m.Arity}
	}
	return &APICall{base{loc}, cls.Name, method, m.Index, args}, nil
}

func (p *Parser) parseExternalCCall(name string, idx int) (Expression, error) {
	loc := p.loc()
	f := p.sym.ExternalC[idx]
	args, err := p.parseArgumentList()
	if err != nil {
		return nil, err
	}
	if len(args) != len(f.Params) {
		return nil, &ArityError{Pos: loc.Position(), Callee: name, Got: len(args), Expected: len(f.Params)}
	}
	return &ExternalCFunctionCall{base{loc}, name, idx, args}, nil
}

func (p *Parser) parseObjectLiteral() (Expression, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // '{'
		return nil, err
	}
	obj := &ObjectLiteral{base: base{loc}}
	for p.tok().Kind != TokRBrace {
		var key string
		if p.tok().Kind == TokLiteral {
			s, ok := p.tok().Value.(string)
			if !ok {
				return nil, p.fail("expected string or identifier as object key")
			}
			key = s
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.tok().Kind == TokIdentifier {
			key = p.tok().Value.(string)
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			return nil, p.fail("expected string or identifier as object key")
		}
		if err := p.expect(TokColon); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		obj.Keys = append(obj.Keys, key)
		obj.Values = append(obj.Values, val)
		if p.tok().Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return obj, p.advance()
}

func (p *Parser) parseArrayLiteral() (Expression, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // '['
		return nil, err
	}
	arr := &ArrayLiteral{base: base{loc}}
	for p.tok().Kind != TokRBracket {
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, val)
		if p.tok().Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return arr, p.advance()
}

// parseFunctionExpression is an anonymous inline function value; a
// following name is a hard error, per §4.5.
func (p *Parser) parseFunctionExpression() (Expression, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'function'
		return nil, err
	}
	if p.tok().Kind == TokIdentifier {
		return nil, p.fail("inline function definitions cannot have a name")
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionExpression{base{loc}, params, body}, nil
}

func (p *Parser) parseNewExpression() (Expression, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'new'
		return nil, err
	}
	name, nameLoc, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	var callee Expression = &UnqualifiedName{base{nameLoc}, name}
	for p.tok().Kind == TokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		part, partLoc, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		callee = &DotOperator{base{partLoc}, callee, part}
	}
	args, err := p.parseArgumentList()
	if err != nil {
		return nil, err
	}
	return &NewOperator{base{loc}, callee, args}, nil
}
