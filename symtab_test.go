package hostjs

import "testing"

func TestVarRegisterAddAndLookup(t *testing.T) {
	r := newVarRegister()
	if r.GetRegisterIndex("x") != -1 {
		t.Fatalf("expected -1 for unknown register")
	}
	idx := r.AddRegister("x")
	if idx != 0 {
		t.Fatalf("expected first index 0, got %d", idx)
	}
	if r.GetRegisterIndex("x") != 0 {
		t.Fatalf("lookup mismatch after add")
	}
	r.AddRegister("y")
	if r.NumUsedRegisters() != 2 {
		t.Fatalf("expected 2 used registers, got %d", r.NumUsedRegisters())
	}
}

func TestCheckIfExistsInOtherStorageDetectsCrossKindCollision(t *testing.T) {
	sym := NewSymbolTable()
	sym.RootVars["x"] = true

	err := sym.CheckIfExistsInOtherStorage(StorageGlobal, "x", CodeLocation{Src: &Source{}, Offset: 0})
	if err == nil {
		t.Fatalf("expected a collision error declaring global x over existing var x")
	}
	if _, ok := err.(*SymbolError); !ok {
		t.Fatalf("expected *SymbolError, got %T", err)
	}
}

func TestCheckIfExistsInOtherStorageAllowsSameKind(t *testing.T) {
	sym := NewSymbolTable()
	sym.RootVars["x"] = true

	// Re-declaring the same identifier under its OWN storage kind is not
	// this gate's job (callers check their own storage first); it must not
	// itself report a collision.
	if err := sym.CheckIfExistsInOtherStorage(StorageRootScope, "x", CodeLocation{Src: &Source{}, Offset: 0}); err != nil {
		t.Fatalf("did not expect a collision for the same storage kind: %v", err)
	}
}

func TestNamespaceConstReservation(t *testing.T) {
	sym := NewSymbolTable()
	ns := sym.CreateNamespace("A")
	if ns.HasConst("PI") {
		t.Fatalf("PI should not exist yet")
	}
	ns.AddConst("PI", CodeLocation{})
	if !ns.HasConst("PI") {
		t.Fatalf("PI should exist after AddConst")
	}
	if ns.ConstValues["PI"] != Undeclared {
		t.Fatalf("expected the Undeclared sentinel immediately after reservation")
	}
}

func TestMarkIncludedRejectsDuplicate(t *testing.T) {
	sym := NewSymbolTable()
	loc := CodeLocation{Src: &Source{File: "a.js"}, Offset: 0}
	if err := sym.MarkIncluded("lib.js", loc); err != nil {
		t.Fatalf("first include should succeed: %v", err)
	}
	err := sym.MarkIncluded("lib.js", loc)
	if err == nil {
		t.Fatalf("expected an error including lib.js twice")
	}
	if _, ok := err.(*IncludeError); !ok {
		t.Fatalf("expected *IncludeError, got %T", err)
	}
}
