package sema

import "actionz80/internal/types"

// builtinSig describes one of the six fixed runtime entry points, so that
// calls to them can be arity/type-checked exactly like a user routine.
type builtinSig struct {
	Name       string
	Params     []types.Type
	ReturnType types.Type
}

// builtins is the closed set of routines the runtime prelude provides.
// Their addresses are fixed offsets from the prelude's base once origin is
// known (internal/runtime), so unlike user routines they need no patch:
// registerBuiltins runs at the start of Check, before any user
// declaration is resolved.
var builtins = []builtinSig{
	{Name: "PrintB", Params: []types.Type{types.TByte}, ReturnType: types.TVoid},
	{Name: "PrintC", Params: []types.Type{types.TCard}, ReturnType: types.TVoid},
	{Name: "PrintE", Params: nil, ReturnType: types.TVoid},
	{Name: "Print", Params: []types.Type{types.NewPointer(types.TByte)}, ReturnType: types.TVoid},
	{Name: "PutD", Params: []types.Type{types.TByte}, ReturnType: types.TVoid},
	{Name: "GetD", Params: nil, ReturnType: types.TByte},
}

// registerBuiltins installs the fixed runtime entry points as routine
// symbols before user source is resolved, so that a program calling
// PrintB before it "sees" any declaration of it still resolves correctly.
func registerBuiltins(t *Table) {
	for _, b := range builtins {
		sym := &Symbol{
			Name: b.Name,
			Kind: KindProc,
			Type: types.TVoid,
			Routine: &RoutineInfo{
				IsBuiltin:    true,
				BuiltinLabel: b.Name,
			},
		}
		if b.ReturnType.Kind != types.Void {
			sym.Kind = KindFunc
			sym.Type = b.ReturnType
		}
		t.Routines[b.Name] = sym
	}
}

func builtinSignature(name string) (builtinSig, bool) {
	for _, b := range builtins {
		if b.Name == name {
			return b, true
		}
	}
	return builtinSig{}, false
}
