package wasm

// Module is a WebAssembly module which has already been decoded and validated.
// Instances created from it never mutate it, so one Module can be instantiated many times.
//
// Note: Sections are named by the WebAssembly 1.0 (20191205) binary format.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#modules%E2%91%A8
type Module struct {
	// TypeSection contains the unique FunctionType of functions imported or defined in this module.
	TypeSection []*FunctionType

	// ImportSection contains imported functions, tables, memories or globals required for instantiation.
	// Imported items precede those defined by this module in each index namespace.
	ImportSection []*Import

	// FunctionSection contains the index in TypeSection of each function defined in this module.
	// Its length must equal the length of CodeSection.
	FunctionSection []Index

	TableSection  []*TableType
	MemorySection []*MemoryType
	GlobalSection []*Global
	ExportSection []*Export

	// StartSection is the index of a function called after instantiation, or nil.
	StartSection *Index

	ElementSection []*ElementSegment
	CodeSection    []*Code
	DataSection    []*DataSegment

	// NameSection is optional debug information used in error messages.
	NameSection *NameSection
}

// Import is the binary representation of an import indicated by Type
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-import
type Import struct {
	Type ExternType
	// Module is the possibly empty primary namespace of this import
	Module string
	// Name is the possibly empty secondary namespace of this import
	Name string
	// DescFunc is the index in Module.TypeSection when Type equals ExternTypeFunc
	DescFunc Index
	// DescTable is the inlined TableType when Type equals ExternTypeTable
	DescTable *TableType
	// DescMem is the inlined MemoryType when Type equals ExternTypeMemory
	DescMem *MemoryType
	// DescGlobal is the inlined GlobalType when Type equals ExternTypeGlobal
	DescGlobal *GlobalType
}

// Export is the binary representation of an export indicated by Type
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-export
type Export struct {
	Type ExternType
	// Name is what the host refers to this definition as.
	Name string
	// Index is the index of the definition to export, the index namespace is by Type
	Index Index
}

// Global is a global defined by this module, initialized by Init.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// Code is an entry in the Module.CodeSection containing the locals and body of the function.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
type Code struct {
	// LocalTypes are any function-scoped variables in insertion order.
	LocalTypes []ValueType

	// Body is a sequence of expressions ending in OpcodeEnd
	Body []byte
}

// ElementSegment initializes a range of a table with function references when the module is instantiated.
type ElementSegment struct {
	TableIndex Index
	OffsetExpr *ConstantExpression
	// Init are positions in the function index namespace.
	Init []Index
}

// DataSegment initializes a range of a memory when the module is instantiated.
type DataSegment struct {
	MemoryIndex      Index
	OffsetExpression *ConstantExpression
	Init             []byte
}

// NameSection represent the known custom name subsections defined in the WebAssembly Binary Format
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#name-section%E2%91%A0
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
}

// functionName returns the name of the function at idx in the name section, or an empty string.
func (m *Module) functionName(idx Index) string {
	if m.NameSection != nil {
		if n, ok := m.NameSection.FunctionNames[idx]; ok {
			return n
		}
	}
	return ""
}
