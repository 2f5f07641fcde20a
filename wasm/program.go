package wasm

import "go.uber.org/zap"

type namedModule struct {
	name     string
	instance *ModuleInstance
}

// ProgramInstance is a registry of named module instances and import resolvers. Each module added sees every
// previously registered module and resolver as an import source.
//
// When a module and a resolver share a name, the module shadows the resolver.
type ProgramInstance struct {
	cfg       *RuntimeConfig
	modules   []namedModule
	resolvers []namedResolver
}

// NewProgramInstance returns an empty registry using NewRuntimeConfig.
func NewProgramInstance() *ProgramInstance {
	return NewProgramInstanceWithConfig(defaultRuntimeConfig)
}

// NewProgramInstanceWithConfig returns an empty registry instantiating modules with cfg.
func NewProgramInstanceWithConfig(cfg *RuntimeConfig) *ProgramInstance {
	return &ProgramInstance{cfg: cfg}
}

// imports lists the registered modules first, then the resolvers, each in registration order.
func (p *ProgramInstance) imports() *Imports {
	ret := NewImports()
	for _, m := range p.modules {
		ret.PushResolver(m.name, m.instance)
	}
	for _, r := range p.resolvers {
		ret.PushResolver(r.name, r.resolver)
	}
	return ret
}

// AddModule instantiates module under name and registers it, replacing any module of the same name.
// Nothing is registered when instantiation fails, including when its start function fails.
func (p *ProgramInstance) AddModule(name string, module *Module, state *HostState) (*ModuleInstance, error) {
	m, err := instantiate(p.cfg, name, module, p.imports(), state)
	if err != nil {
		return nil, err
	}
	p.InsertLoadedModule(name, m)
	return m, nil
}

// InsertLoadedModule registers an already instantiated module under name, replacing any module of the same name.
func (p *ProgramInstance) InsertLoadedModule(name string, m *ModuleInstance) {
	for i := range p.modules {
		if p.modules[i].name == name {
			p.modules[i].instance = m
			Logger().Debug("replaced module", zap.String("module", name))
			return
		}
	}
	p.modules = append(p.modules, namedModule{name: name, instance: m})
	Logger().Debug("registered module", zap.String("module", name))
}

// AddImportResolver registers r under name, replacing any resolver of the same name.
func (p *ProgramInstance) AddImportResolver(name string, r ImportResolver) {
	for i := range p.resolvers {
		if p.resolvers[i].name == name {
			p.resolvers[i].resolver = r
			Logger().Debug("replaced import resolver", zap.String("module", name))
			return
		}
	}
	p.resolvers = append(p.resolvers, namedResolver{name: name, resolver: r})
	Logger().Debug("registered import resolver", zap.String("module", name))
}

// AddHostModule registers h as the import resolver named name.
func (p *ProgramInstance) AddHostModule(name string, h *HostModule) {
	p.AddImportResolver(name, h)
}

// Module returns the module registered under name.
func (p *ProgramInstance) Module(name string) (*ModuleInstance, bool) {
	for _, m := range p.modules {
		if m.name == name {
			return m.instance, true
		}
	}
	return nil, false
}

// Resolver returns what an import from name would resolve against: the module registered under name if any,
// otherwise the resolver.
func (p *ProgramInstance) Resolver(name string) (ImportResolver, bool) {
	if m, ok := p.Module(name); ok {
		return m, true
	}
	for _, r := range p.resolvers {
		if r.name == name {
			return r.resolver, true
		}
	}
	return nil, false
}

func (p *ProgramInstance) module(name string) (*ModuleInstance, error) {
	m, ok := p.Module(name)
	if !ok {
		return nil, newError(ErrorKindProgram, "module %s not found", name)
	}
	return m, nil
}

// InvokeExport invokes the function exported as funcName by the module registered under moduleName.
func (p *ProgramInstance) InvokeExport(moduleName, funcName string, args []Value, state *HostState) ([]Value, error) {
	m, err := p.module(moduleName)
	if err != nil {
		return nil, err
	}
	return m.InvokeExport(funcName, args, state)
}

// InvokeIndex invokes the function at idx of the module registered under moduleName.
func (p *ProgramInstance) InvokeIndex(moduleName string, idx Index, args []Value, state *HostState) ([]Value, error) {
	m, err := p.module(moduleName)
	if err != nil {
		return nil, err
	}
	return m.InvokeIndex(idx, args, state)
}

// InvokeFunc invokes f, which need not belong to a registered module.
func (p *ProgramInstance) InvokeFunc(f *FunctionInstance, args []Value, state *HostState) ([]Value, error) {
	return f.Invoke(args, state)
}
