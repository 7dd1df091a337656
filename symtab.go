// symtab.go — the symbol-table aggregate: root namespace, named
// namespaces, the typed register file, the global property bag, API
// classes, external C functions, callbacks, and the included-file set.
//
// This is a single struct threaded explicitly through the pre-pass and
// parser as a mutable-borrow parameter (never a package-level global),
// per the REDESIGN FLAGS in §9. It is created once per Engine and mutated
// only by the pre-pass and by declaration parsing, both on the parse
// thread, per §5.
package hostjs

import "fmt"

// StorageKind enumerates the mutually-exclusive places an identifier can
// live within a given lexical scope, for the single uniqueness gate
// CheckIfExistsInOtherStorage.
type StorageKind int

const (
	StorageRootScope StorageKind = iota
	StorageConstVariables
	StorageRegister
	StorageLocalScope
	StorageGlobal
	StorageInlineFunction
	StorageAPIClass
	StorageExternalC
	StorageNamespace
	StorageCallbackParam
)

// VarRegister is a fixed-slot typed array keyed by identifier, addressed by
// name at declaration time and by index at runtime.
type VarRegister struct {
	names []string
	index map[string]int
}

func newVarRegister() *VarRegister {
	return &VarRegister{index: make(map[string]int)}
}

// AddRegister reserves the next slot for id and returns its index. Callers
// must have already checked uniqueness.
func (r *VarRegister) AddRegister(id string) int {
	idx := len(r.names)
	r.names = append(r.names, id)
	r.index[id] = idx
	return idx
}

// GetRegisterIndex returns the slot index for id, or -1 if absent.
func (r *VarRegister) GetRegisterIndex(id string) int {
	if idx, ok := r.index[id]; ok {
		return idx
	}
	return -1
}

// NumUsedRegisters returns how many slots have been reserved.
func (r *VarRegister) NumUsedRegisters() int { return len(r.names) }

// InlineFunction is a named callable whose signature and doc comment are
// pre-registered by the pre-pass; Body (and Locals) are filled in when the
// main parse reaches its definition.
type InlineFunction struct {
	Name       string
	Params     []string
	Locals     []string // local var names declared inside the body
	Body       *BlockStatement
	Comment    string
	DeclaredAt CodeLocation
}

// ParamIndex returns the index of name in Params, or -1.
func (f *InlineFunction) ParamIndex(name string) int {
	for i, p := range f.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// LocalIndex returns the index of name in Locals, or -1.
func (f *InlineFunction) LocalIndex(name string) int {
	for i, p := range f.Locals {
		if p == name {
			return i
		}
	}
	return -1
}

// Callback is a host-registered named entry point with a fixed parameter
// arity. Its body is installed by the parser when a matching `function
// <name>(...)` is encountered.
type Callback struct {
	Name   string
	Arity  int
	Params []string // filled in when the definition is parsed
	Locals []string
	Body   *BlockStatement
}

func (c *Callback) HasParam(name string) bool {
	for _, p := range c.Params {
		if p == name {
			return true
		}
	}
	return false
}

func (c *Callback) HasLocal(name string) bool {
	for _, p := range c.Locals {
		if p == name {
			return true
		}
	}
	return false
}

// APIClass is a host-registered opaque object exposing named constants and
// methods identified by index at parse time.
type APIClass struct {
	Name      string
	Constants map[string]interface{}
	Methods   map[string]APIMethod
}

// APIMethod is one entry in an APIClass's method table: a stable dispatch
// index plus the exact arity the parser must enforce.
type APIMethod struct {
	Index int
	Arity int
}

// ExternalCFunction is a verbatim source block captured for a downstream,
// out-of-scope C back-end, alongside its declared shape.
type ExternalCFunction struct {
	Name          string
	HasReturnType bool
	Params        []string
	RawSource     string
	Comment       string
	Index         int
}

// Namespace is a named container of constants, register-variables, and
// inline functions. Namespaces never nest (enforced by the pre-pass).
type Namespace struct {
	Name string

	// ConstNames preserves declaration order; ConstValues starts every
	// entry at the "undeclared" sentinel and is overwritten at first
	// execution by the (external) evaluator.
	ConstNames  []string
	ConstValues map[string]interface{}
	ConstLocs   map[string]CodeLocation

	Register     *VarRegister
	RegisterLocs map[string]CodeLocation

	InlineFunctions []*InlineFunction
}

func newNamespace(name string) *Namespace {
	return &Namespace{
		Name:         name,
		ConstValues:  make(map[string]interface{}),
		ConstLocs:    make(map[string]CodeLocation),
		Register:     newVarRegister(),
		RegisterLocs: make(map[string]CodeLocation),
	}
}

// Undeclared is the sentinel value a namespace's constant pool holds
// between the pre-pass reserving the identifier and the evaluator
// executing its `const var` initializer for the first time.
var Undeclared = struct{ name string }{"undeclared"}

// HasConst reports whether id has been reserved in this namespace's
// constant pool (pre-pass placeholder or later).
func (n *Namespace) HasConst(id string) bool {
	_, ok := n.ConstValues[id]
	return ok
}

// AddConst reserves id in the constant pool with the Undeclared sentinel.
// It is idempotent-unsafe by design: callers must check HasConst first, per
// the pre-pass's duplicate-detection rule.
func (n *Namespace) AddConst(id string, loc CodeLocation) {
	n.ConstNames = append(n.ConstNames, id)
	n.ConstValues[id] = Undeclared
	n.ConstLocs[id] = loc
}

func (n *Namespace) GetInlineFunction(name string) *InlineFunction {
	for _, f := range n.InlineFunctions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// SymbolTable is the process-wide (per Engine instance), single-threaded
// aggregate described in §3: root namespace fields inlined, plus named
// namespaces, globals, API classes, external C functions, callbacks, and
// the included-file set.
type SymbolTable struct {
	// Root namespace, inlined (there is no separate *Namespace for root so
	// that RootScope member checks are simple field reads).
	RootConstNames      []string
	RootConstValues     map[string]interface{}
	RootConstLocs       map[string]CodeLocation
	RootRegister        *VarRegister
	RootRegisterLocs    map[string]CodeLocation
	RootInlineFunctions []*InlineFunction
	RootVars            map[string]bool // plain `var` declarations at root scope

	Namespaces map[string]*Namespace
	nsOrder    []string

	Globals map[string]interface{}

	APIClasses map[string]*APIClass

	ExternalC      []*ExternalCFunction
	externalCIndex map[string]int

	Callbacks map[string]*Callback

	// IncludedFiles is the ordered set of canonical include paths already
	// loaded, guarding against double inclusion.
	IncludedFiles   []string
	includedFileSet map[string]bool
	includeError    map[string]string
}

// NewSymbolTable allocates an empty aggregate.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		RootConstValues:  make(map[string]interface{}),
		RootConstLocs:    make(map[string]CodeLocation),
		RootRegister:     newVarRegister(),
		RootRegisterLocs: make(map[string]CodeLocation),
		RootVars:         make(map[string]bool),
		Namespaces:       make(map[string]*Namespace),
		Globals:          make(map[string]interface{}),
		APIClasses:       make(map[string]*APIClass),
		externalCIndex:   make(map[string]int),
		Callbacks:        make(map[string]*Callback),
		includedFileSet:  make(map[string]bool),
		includeError:     make(map[string]string),
	}
}

// GetNamespace returns a named child namespace, or nil.
func (s *SymbolTable) GetNamespace(id string) *Namespace { return s.Namespaces[id] }

// CreateNamespace registers a brand-new named namespace. Callers must have
// already confirmed via GetNamespace that it does not exist.
func (s *SymbolTable) CreateNamespace(id string) *Namespace {
	ns := newNamespace(id)
	s.Namespaces[id] = ns
	s.nsOrder = append(s.nsOrder, id)
	return ns
}

// GetCallback returns the host-registered callback with that name, or nil.
func (s *SymbolTable) GetCallback(id string) *Callback { return s.Callbacks[id] }

// GetExternalCIndex returns the pre-registered index of an external C
// function, or -1.
func (s *SymbolTable) GetExternalCIndex(id string) int {
	if idx, ok := s.externalCIndex[id]; ok {
		return idx
	}
	return -1
}

// AddExternalCFunction appends a captured extern "C" function and returns
// its stable index.
func (s *SymbolTable) AddExternalCFunction(f *ExternalCFunction) int {
	f.Index = len(s.ExternalC)
	s.ExternalC = append(s.ExternalC, f)
	s.externalCIndex[f.Name] = f.Index
	return f.Index
}

// RegisterAPIClass installs a host-provided API class. Hosts call this
// before parsing; it is not mutated by the pre-pass or parser.
func (s *SymbolTable) RegisterAPIClass(c *APIClass) { s.APIClasses[c.Name] = c }

// RegisterCallback installs a host-provided callback entry point. Hosts
// call this before parsing.
func (s *SymbolTable) RegisterCallback(name string, arity int) *Callback {
	cb := &Callback{Name: name, Arity: arity}
	s.Callbacks[name] = cb
	return cb
}

// RegisterGlobal seeds an entry in the shared global property bag.
func (s *SymbolTable) RegisterGlobal(name string, value interface{}) {
	s.Globals[name] = value
}

// HasGlobal reports whether name exists in the global property bag.
func (s *SymbolTable) HasGlobal(name string) bool {
	_, ok := s.Globals[name]
	return ok
}

// MarkIncluded records a canonical path as loaded. It returns an
// IncludeError if the path was already present, satisfying "an included
// file is loaded at most once per engine run".
func (s *SymbolTable) MarkIncluded(canonical string, at CodeLocation) error {
	if s.includedFileSet[canonical] {
		return &IncludeError{Pos: at.Position(), Msg: "included multiple times", File: canonical}
	}
	s.includedFileSet[canonical] = true
	s.IncludedFiles = append(s.IncludedFiles, canonical)
	return nil
}

// SetIncludeError attaches an error message to the last included-file
// entry, matching the include mechanism's provenance rule in §4.7.
func (s *SymbolTable) SetIncludeError(canonical, msg string) {
	s.includeError[canonical] = msg
}

// CheckIfExistsInOtherStorage is the single uniqueness gate every
// declaration site calls: it fails if id is already present in any storage
// other than kind. Only the storage kinds relevant to root-level and
// local-scope declarations are checked here (namespace-scoped constants
// and registers are checked against their own namespace by the caller
// before this is invoked).
func (s *SymbolTable) CheckIfExistsInOtherStorage(kind StorageKind, id string, at CodeLocation) error {
	fail := func(where string) error {
		return &SymbolError{Pos: at.Position(), Msg: fmt.Sprintf("identifier %q already exists in %s", id, where)}
	}
	if kind != StorageRootScope && s.RootVars[id] {
		return fail("root scope")
	}
	if kind != StorageConstVariables {
		if _, ok := s.RootConstValues[id]; ok {
			return fail("const variables")
		}
	}
	if kind != StorageRegister && s.RootRegister.GetRegisterIndex(id) != -1 {
		return fail("register")
	}
	if kind != StorageGlobal && s.HasGlobal(id) {
		return fail("globals")
	}
	if kind != StorageInlineFunction {
		for _, f := range s.RootInlineFunctions {
			if f.Name == id {
				return fail("inline functions")
			}
		}
	}
	if kind != StorageAPIClass {
		if _, ok := s.APIClasses[id]; ok {
			return fail("API classes")
		}
	}
	if kind != StorageExternalC && s.GetExternalCIndex(id) != -1 {
		return fail("external C functions")
	}
	if kind != StorageNamespace {
		if _, ok := s.Namespaces[id]; ok {
			return fail("namespaces")
		}
	}
	return nil
}
