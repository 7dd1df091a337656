package hostjs

import "testing"

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	eng := NewEngine()
	prog, err := eng.Parse(src, "t.js")
	if err != nil {
		t.Fatalf("unexpected error parsing %q: %v", src, err)
	}
	return prog
}

func parseFail(t *testing.T, src string) error {
	t.Helper()
	eng := NewEngine()
	_, err := eng.Parse(src, "t.js")
	if err == nil {
		t.Fatalf("expected an error parsing %q", src)
	}
	return err
}

func TestParseConstVarAndReference(t *testing.T) {
	prog := parseOK(t, `const var PI = 3.14; var x = PI;`)
	if len(prog.Block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Block.Statements))
	}
	cv, ok := prog.Block.Statements[0].(*ConstVarStatement)
	if !ok || cv.Name != "PI" || cv.Namespace != nil {
		t.Fatalf("statement 0: got %#v", prog.Block.Statements[0])
	}
	vs, ok := prog.Block.Statements[1].(*VarStatement)
	if !ok {
		t.Fatalf("statement 1: got %#v", prog.Block.Statements[1])
	}
	ref, ok := vs.Init.(*ConstReference)
	if !ok || ref.Name != "PI" || ref.Namespace != nil {
		t.Fatalf("expected x's init to reference root const PI, got %#v", vs.Init)
	}
}

func TestParseNamespacedConstAccess(t *testing.T) {
	prog := parseOK(t, `namespace A { const var k = 1; } var y = A.k;`)
	ns, ok := prog.Block.Statements[0].(*NamespaceStatement)
	if !ok || ns.Namespace.Name != "A" {
		t.Fatalf("statement 0: got %#v", prog.Block.Statements[0])
	}
	vs, ok := prog.Block.Statements[1].(*VarStatement)
	if !ok {
		t.Fatalf("statement 1: got %#v", prog.Block.Statements[1])
	}
	ref, ok := vs.Init.(*ConstReference)
	if !ok || ref.Name != "k" || ref.Namespace == nil || ref.Namespace.Name != "A" {
		t.Fatalf("expected y's init to reference A.k, got %#v", vs.Init)
	}
}

func TestParseDuplicateVarIsSymbolError(t *testing.T) {
	err := parseFail(t, `var x; var x;`)
	unwrapAndCheckKind(t, err, KindSymbol)
}

func TestParseDuplicateConstVarIsSymbolError(t *testing.T) {
	err := parseFail(t, `const var x = 1; const var x = 2;`)
	unwrapAndCheckKind(t, err, KindSymbol)
}

func TestParseNestedNamespaceIsSymbolError(t *testing.T) {
	err := parseFail(t, `namespace A { namespace B { } }`)
	unwrapAndCheckKind(t, err, KindSymbol)
}

func TestParseInlineFunctionArityMismatchIsArityError(t *testing.T) {
	err := parseFail(t, `inline function add(a, b) { return a + b; } var z = add(1);`)
	unwrapAndCheckKind(t, err, KindArity)
}

// unwrapAndCheckKind digs through WrapWithSource's snippetError to find the
// underlying located error and checks its kind by its concrete error type.
func unwrapAndCheckKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	for err != nil {
		switch e := err.(type) {
		case *LexError:
			checkKind(t, KindLex, want)
			return
		case *ParseError:
			checkKind(t, KindParse, want)
			return
		case *SymbolError:
			checkKind(t, KindSymbol, want)
			return
		case *ArityError:
			checkKind(t, KindArity, want)
			return
		case *IncludeError:
			checkKind(t, KindInclude, want)
			return
		case *ConstError:
			checkKind(t, KindConst, want)
			return
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			t.Fatalf("could not classify error: %#v", err)
		}
	}
	t.Fatalf("no error to classify")
}

func checkKind(t *testing.T, got, want ErrorKind) {
	t.Helper()
	if got != want {
		t.Fatalf("got error kind %v, want %v", got, want)
	}
}

func TestParseOperatorPrecedenceUnaryMinusBindsTighterThanBinary(t *testing.T) {
	prog := parseOK(t, `var x = 1 - -2;`)
	vs := prog.Block.Statements[0].(*VarStatement)
	bin, ok := vs.Init.(*BinaryOp)
	if !ok || bin.Op != "-" {
		t.Fatalf("expected top-level BinaryOp \"-\", got %#v", vs.Init)
	}
	if _, ok := bin.Right.(*UnaryOp); !ok {
		t.Fatalf("expected right operand to be a unary minus, got %#v", bin.Right)
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	prog := parseOK(t, `var x; var y; var z = 1; x = y = z;`)
	es, ok := prog.Block.Statements[3].(*ExpressionStatement)
	if !ok {
		t.Fatalf("statement 3: got %#v", prog.Block.Statements[3])
	}
	outer, ok := es.Expr.(*Assignment)
	if !ok {
		t.Fatalf("expected an Assignment, got %#v", es.Expr)
	}
	if _, ok := outer.Value.(*Assignment); !ok {
		t.Fatalf("expected right-associative nesting, got %#v", outer.Value)
	}
}

func TestParseForInDetection(t *testing.T) {
	prog := parseOK(t, `var arr; for (i in arr) { }`)
	fi, ok := prog.Block.Statements[1].(*ForInStatement)
	if !ok {
		t.Fatalf("expected a ForInStatement, got %#v", prog.Block.Statements[1])
	}
	if fi.IteratorName != "i" {
		t.Fatalf("expected iterator name i, got %q", fi.IteratorName)
	}
}

func TestParseClassicForIsNotConfusedWithForIn(t *testing.T) {
	prog := parseOK(t, `for (var i = 0; i < 10; i++) { }`)
	if _, ok := prog.Block.Statements[0].(*ForStatement); !ok {
		t.Fatalf("expected a ForStatement, got %#v", prog.Block.Statements[0])
	}
}

func TestParseSwitchFallThroughStacksConditions(t *testing.T) {
	prog := parseOK(t, `
var x;
switch (x) {
	case 1:
	case 2:
		x = 1;
		break;
	default:
		x = 0;
}
`)
	sw, ok := prog.Block.Statements[1].(*SwitchStatement)
	if !ok {
		t.Fatalf("expected a SwitchStatement, got %#v", prog.Block.Statements[1])
	}
	if len(sw.Cases) != 1 {
		t.Fatalf("expected fall-through to merge case 1 and case 2 into one case arm, got %d arms", len(sw.Cases))
	}
	if len(sw.Cases[0].Conditions) != 2 {
		t.Fatalf("expected 2 stacked conditions, got %d", len(sw.Cases[0].Conditions))
	}
	if sw.Default == nil {
		t.Fatalf("expected a default arm")
	}
}

func TestParseIteratorNameResolvesInsideForInBody(t *testing.T) {
	prog := parseOK(t, `var arr; for (i in arr) { var y = i; }`)
	fi := prog.Block.Statements[1].(*ForInStatement)
	block := fi.Body.(*BlockStatement)
	inner := block.Statements[0].(*VarStatement)
	if _, ok := inner.Init.(*IteratorName); !ok {
		t.Fatalf("expected the loop body to resolve i as an IteratorName, got %#v", inner.Init)
	}
}

func TestParseBracelessForInBody(t *testing.T) {
	prog := parseOK(t, `var arr; var total; for (i in arr) total += i;`)
	fi := prog.Block.Statements[2].(*ForInStatement)
	es, ok := fi.Body.(*ExpressionStatement)
	if !ok {
		t.Fatalf("expected a braceless ExpressionStatement body, got %#v", fi.Body)
	}
	if _, ok := es.Expr.(*Assignment); !ok {
		t.Fatalf("expected total += i to parse as an Assignment, got %#v", es.Expr)
	}
}

func TestParseBracelessIfBody(t *testing.T) {
	prog := parseOK(t, `var x; if (x) return;`)
	ifs := prog.Block.Statements[1].(*IfStatement)
	if _, ok := ifs.Then.(*ReturnStatement); !ok {
		t.Fatalf("expected a braceless ReturnStatement body, got %#v", ifs.Then)
	}
}

func TestParseBracelessWhileBody(t *testing.T) {
	prog := parseOK(t, `var x; while (x) x = 0;`)
	ws := prog.Block.Statements[1].(*WhileStatement)
	if _, ok := ws.Body.(*ExpressionStatement); !ok {
		t.Fatalf("expected a braceless ExpressionStatement body, got %#v", ws.Body)
	}
}
