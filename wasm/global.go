package wasm

// GlobalInstance is a typed value cell. Importers share the defining module's *GlobalInstance, so a Set through one
// alias is seen by all of them.
type GlobalInstance struct {
	typ GlobalType
	val Value
}

// NewGlobalInstance returns a global holding val whose type is fixed to val's type.
func NewGlobalInstance(val Value, mutable bool) *GlobalInstance {
	return &GlobalInstance{typ: GlobalType{ValType: val.typ, Mutable: mutable}, val: val}
}

// Type returns the value type and mutability.
func (g *GlobalInstance) Type() *GlobalType {
	t := g.typ
	return &t
}

// IsMutable returns true if Set is allowed.
func (g *GlobalInstance) IsMutable() bool {
	return g.typ.Mutable
}

// Get returns the current value.
func (g *GlobalInstance) Get() Value {
	return g.val
}

// Set replaces the value. It fails with a Global error on an immutable global and a Value error when v has a
// different type.
func (g *GlobalInstance) Set(v Value) error {
	if !g.typ.Mutable {
		return newError(ErrorKindGlobal, "cannot set an immutable global")
	}
	if v.typ != g.typ.ValType {
		return newError(ErrorKindValue, "cannot set %s global to %s", ValueTypeName(g.typ.ValType), ValueTypeName(v.typ))
	}
	g.val = v
	return nil
}
