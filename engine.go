// engine.go — Engine: the host-facing entry point that owns one
// SymbolTable across repeated Parse calls, per §4.8.
//
// This mirrors the teacher's own top-level Interpreter type: a single
// long-lived object a host constructs once, registers its object model
// into, and then calls repeatedly, rather than a package of free
// functions operating on ad-hoc state.
package hostjs

// Engine parses source text against a symbol table that accumulates
// declarations across calls, the way a host application registers its
// object model once and then parses several scripts/callbacks against it.
type Engine struct {
	sym    *SymbolTable
	loader IncludeLoader
}

// NewEngine returns an Engine with an empty symbol table and no include
// loader configured (SetIncludeLoader is required before parsing any
// source that uses `include(...)`).
func NewEngine() *Engine {
	return &Engine{sym: NewSymbolTable()}
}

// SetIncludeLoader installs the strategy used to resolve `include("...")`
// arguments. Parsing a script that includes another file without one
// configured fails with an IncludeError.
func (e *Engine) SetIncludeLoader(loader IncludeLoader) { e.loader = loader }

// RegisterNamespace pre-declares an empty namespace, for hosts that want a
// namespace to exist even if the script itself never opens it (e.g. so
// host-side constants can be seeded into it before parsing).
func (e *Engine) RegisterNamespace(name string) *Namespace {
	if ns := e.sym.GetNamespace(name); ns != nil {
		return ns
	}
	return e.sym.CreateNamespace(name)
}

// RegisterAPIClass installs a host object exposing named constants and
// index-dispatched methods with fixed arities.
func (e *Engine) RegisterAPIClass(class *APIClass) { e.sym.RegisterAPIClass(class) }

// RegisterCallback declares a fixed-arity entry point the host will invoke
// later; the script must define it with `function <name>(...)` using
// exactly arity parameters, or parsing fails with an ArityError.
func (e *Engine) RegisterCallback(name string, arity int) *Callback {
	return e.sym.RegisterCallback(name, arity)
}

// RegisterGlobal seeds a name in the shared, unordered global property
// bag, as `global name;` would have. Scripts may still declare it again
// with `global name = ...;`; declaring it as a var, register or inline
// function fails with a SymbolError.
func (e *Engine) RegisterGlobal(name string, value interface{}) {
	e.sym.RegisterGlobal(name, value)
}

// RegisterExternalCFunction pre-declares a native function shape without a
// captured body, letting host-provided native code satisfy an
// `extern "C"` call site the script only references.
func (e *Engine) RegisterExternalCFunction(f *ExternalCFunction) int {
	return e.sym.AddExternalCFunction(f)
}

// SymbolTable exposes the underlying table for hosts that need read access
// after parsing (e.g. to walk RootConstValues for a debugger view).
func (e *Engine) SymbolTable() *SymbolTable { return e.sym }

// Parse runs the pre-pass and then the main parse over source under
// fileName, returning the resulting Program. Declarations accumulate in
// the Engine's SymbolTable, so a second Parse call sees everything the
// first one declared (mirroring one script re-executed against a
// persistent host object model).
func (e *Engine) Parse(source, fileName string) (*Program, error) {
	src := &Source{Text: source, File: fileName}
	if err := RunPrePass(e.sym, e.loader, src); err != nil {
		return nil, WrapWithSource(err, fileName, source)
	}
	prog, err := NewParser(e.sym, e.loader, src).ParseProgram()
	if err != nil {
		return nil, WrapWithSource(err, fileName, source)
	}
	return prog, nil
}

// Reset drops everything the pre-pass/parse mutated (constants, registers,
// inline functions, plain vars, namespaces, external-C functions, included
// files) so a script can be reparsed from a clean slate, per §4.8. It keeps
// the configured include loader, the API classes, the callbacks, and the
// global property bag (including globals a parsed script added) intact, so
// the host does not have to re-register those after every Reset.
// Namespaces and external-C functions are dropped even when the host
// registered them. Each retained Callback has its
// parse-installed Params/Locals/Body cleared so redefining it after Reset
// behaves exactly like defining it for the first time.
func (e *Engine) Reset() {
	fresh := NewSymbolTable()
	fresh.APIClasses = e.sym.APIClasses
	fresh.Globals = e.sym.Globals
	for name, cb := range e.sym.Callbacks {
		cb.Params = nil
		cb.Locals = nil
		cb.Body = nil
		fresh.Callbacks[name] = cb
	}
	e.sym = fresh
}
