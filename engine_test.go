package hostjs

import (
	"strings"
	"testing"
)

func TestEngineCallbackDefinitionAndArityCheck(t *testing.T) {
	eng := NewEngine()
	eng.RegisterCallback("onNoteOn", 2)

	prog, err := eng.Parse(`function onNoteOn(note, velocity) { return note; }`, "cb.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cb, ok := prog.Block.Statements[0].(*CallbackDefinitionStatement)
	if !ok || cb.Callback.Name != "onNoteOn" {
		t.Fatalf("expected a callback definition, got %#v", prog.Block.Statements[0])
	}
	if len(cb.Callback.Params) != 2 {
		t.Fatalf("expected 2 params installed, got %v", cb.Callback.Params)
	}
}

func TestEngineCallbackArityMismatchIsArityError(t *testing.T) {
	eng := NewEngine()
	eng.RegisterCallback("onNoteOn", 2)
	_, err := eng.Parse(`function onNoteOn(note) { return note; }`, "cb.js")
	if err == nil {
		t.Fatalf("expected an ArityError for a callback defined with the wrong parameter count")
	}
}

func TestEngineAPIClassCallWithArityCheck(t *testing.T) {
	eng := NewEngine()
	eng.RegisterAPIClass(&APIClass{
		Name:      "Console",
		Constants: map[string]interface{}{},
		Methods: map[string]APIMethod{
			"print": {Index: 0, Arity: 1},
		},
	})
	prog, err := eng.Parse(`Console.print("hi");`, "c.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	es := prog.Block.Statements[0].(*ExpressionStatement)
	call, ok := es.Expr.(*APICall)
	if !ok || call.ClassName != "Console" || call.MethodName != "print" {
		t.Fatalf("expected an APICall, got %#v", es.Expr)
	}

	_, err = eng.Parse(`Console.print("hi", "there");`, "c2.js")
	if err == nil {
		t.Fatalf("expected an ArityError calling Console.print with 2 arguments")
	}
}

func TestEngineRegisterVarStatement(t *testing.T) {
	eng := NewEngine()
	prog, err := eng.Parse(`register_var counter; reg counter = 0;`, "r.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rv, ok := prog.Block.Statements[0].(*RegisterVarStatement)
	if !ok || rv.Name != "counter" || rv.Index != 0 {
		t.Fatalf("expected a RegisterVarStatement, got %#v", prog.Block.Statements[0])
	}
}

func TestEngineRegAssignmentToUndeclaredRegisterFails(t *testing.T) {
	eng := NewEngine()
	_, err := eng.Parse(`reg counter = 0;`, "r.js")
	if err == nil {
		t.Fatalf("expected an error referencing a register that was never declared with register_var")
	}
}

func TestEngineGlobalRoundTrip(t *testing.T) {
	eng := NewEngine()
	eng.RegisterGlobal("sharedFlag", false)
	prog, err := eng.Parse(`global sharedFlag = true;`, "g.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gv, ok := prog.Block.Statements[0].(*GlobalVarStatement)
	if !ok || gv.Name != "sharedFlag" {
		t.Fatalf("expected a GlobalVarStatement, got %#v", prog.Block.Statements[0])
	}
}

func TestEngineExternalCFunctionCallArityCheck(t *testing.T) {
	eng := NewEngine()
	prog, err := eng.Parse(`
extern "C" {
	var add(var a, var b) { return a + b; }
}
var z = add(1, 2);
`, "e.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := prog.Block.Statements[len(prog.Block.Statements)-1]
	vs, ok := last.(*VarStatement)
	if !ok {
		t.Fatalf("expected the trailing var statement, got %#v", last)
	}
	if _, ok := vs.Init.(*ExternalCFunctionCall); !ok {
		t.Fatalf("expected an ExternalCFunctionCall, got %#v", vs.Init)
	}

	if _, err := eng.Parse(`var w = add(1);`, "e2.js"); err == nil {
		t.Fatalf("expected an arity error calling add with 1 argument")
	}
}

func TestEngineExternalCFunctionRawSourceCapturedVerbatim(t *testing.T) {
	eng := NewEngine()
	_, err := eng.Parse(`
extern "C" {
	var add(var a, var b) { return a + b; }
}
var z = 1;
`, "e.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fns := eng.SymbolTable().ExternalC
	if len(fns) != 1 {
		t.Fatalf("expected 1 external C function, got %d", len(fns))
	}
	raw := fns[0].RawSource
	if strings.Contains(raw, "var z") {
		t.Fatalf("raw source over-captured past the function's own closing brace: %q", raw)
	}
	if strings.Count(raw, "}") != 1 {
		t.Fatalf("expected exactly the function body's own closing brace in raw source, got %q", raw)
	}
}

func TestEngineIncludeSplicesAcrossParse(t *testing.T) {
	eng := NewEngine()
	eng.SetIncludeLoader(&EmbeddedIncludeLoader{Files: map[string]string{
		"util.js": `inline function double(x) { return x * 2; }`,
	}})
	prog, err := eng.Parse(`include("util.js"); var y = double(4);`, "main.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Block.Statements) != 2 {
		t.Fatalf("expected 2 top-level statements (spliced include + var), got %d", len(prog.Block.Statements))
	}
	if _, ok := prog.Block.Statements[0].(*IncludeStatement); !ok {
		t.Fatalf("expected statement 0 to be the include splice, got %#v", prog.Block.Statements[0])
	}
}

func TestEngineResetClearsAccumulatedDeclarations(t *testing.T) {
	eng := NewEngine()
	if _, err := eng.Parse(`var x;`, "a.js"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng.Reset()
	// After Reset, x no longer exists, so declaring it again must succeed.
	if _, err := eng.Parse(`var x;`, "b.js"); err != nil {
		t.Fatalf("expected declaring x again after Reset to succeed, got: %v", err)
	}
}

func TestEngineLocalVarOutsideInlineFunctionOrCallbackFails(t *testing.T) {
	eng := NewEngine()
	_, err := eng.Parse(`local x = 1;`, "l.js")
	if err == nil {
		t.Fatalf("expected an error: 'local var' outside an inline function or callback body")
	}
}

func TestEngineResetRetainsHostRegistrations(t *testing.T) {
	eng := NewEngine()
	eng.RegisterCallback("onNoteOn", 1)
	eng.RegisterAPIClass(&APIClass{
		Name:      "Console",
		Constants: map[string]interface{}{},
		Methods:   map[string]APIMethod{"print": {Index: 0, Arity: 1}},
	})
	eng.RegisterGlobal("sharedFlag", false)

	if _, err := eng.Parse(`function onNoteOn(note) { return note; } global sharedFlag = true; Console.print("hi");`, "a.js"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng.Reset()

	// None of these should require re-registering: Reset must keep the
	// callback, API class, and global the host installed.
	prog, err := eng.Parse(`function onNoteOn(note) { return note; } global sharedFlag = true; Console.print("hi");`, "b.js")
	if err != nil {
		t.Fatalf("expected host registrations to survive Reset, got: %v", err)
	}
	if _, ok := prog.Block.Statements[0].(*CallbackDefinitionStatement); !ok {
		t.Fatalf("expected the callback definition to still resolve after Reset, got %#v", prog.Block.Statements[0])
	}
}

func TestEngineNamedFunctionExpressionIsHardError(t *testing.T) {
	eng := NewEngine()
	_, err := eng.Parse(`var f = function named() { };`, "f.js")
	if err == nil {
		t.Fatalf("expected an error: anonymous-only function expressions")
	}
}
