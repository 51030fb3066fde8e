// Package schema loads the CRM's form definitions from CUE.
//
// Each form lives under `form: <name>` with a label and a `fields` struct.
// Field defaults (`string | *""`) are the values a blank new form starts
// with; the draft autosaver compares against them to decide dirtiness.
// Fields with no default start as null.
//
// The built-in definitions are embedded (forms.cue); Load reads a directory
// of .cue files instead.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/ir"
)

//go:embed forms.cue
var builtinForms []byte

// Field is one form field.
type Field struct {
	Name    string
	Type    string // string, int, bool, array, object; "?" suffix when nullable
	Default ir.IRValue
}

// FormSchema is one compiled form definition.
type FormSchema struct {
	Name   string
	Label  string
	Fields []Field

	value cue.Value // the fields struct
}

// Catalog is the set of forms, keyed by name.
type Catalog struct {
	forms map[string]*FormSchema
	names []string
}

// Default compiles the embedded form definitions.
func Default() (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(builtinForms, cue.Filename("forms.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Load compiles every .cue file in dir as a single CUE instance.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Compile builds a Catalog from a CUE value holding a `form` struct.
func Compile(v cue.Value) (*Catalog, error) {
	formsVal := v.LookupPath(cue.ParsePath("form"))
	if !formsVal.Exists() {
		return nil, &CompileError{
			Field:   "form",
			Message: "no forms defined",
			Pos:     v.Pos(),
		}
	}

	iter, err := formsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{forms: make(map[string]*FormSchema)}
	for iter.Next() {
		fs, err := compileForm(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.forms[fs.Name] = fs
		cat.names = append(cat.names, fs.Name)
	}
	sort.Strings(cat.names)
	return cat, nil
}

// Form returns the schema for name.
func (c *Catalog) Form(name string) (*FormSchema, bool) {
	fs, ok := c.forms[name]
	return fs, ok
}

// Names returns the form names in sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

func compileForm(name string, v cue.Value) (*FormSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	fs := &FormSchema{Name: name, Label: name}

	if labelVal := v.LookupPath(cue.ParsePath("label")); labelVal.Exists() {
		label, err := labelVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fs.Label = label
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("form.%s.fields", name),
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	fs.value = fieldsVal

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fv := iter.Value()
		typ, err := typeName(fv)
		if err != nil {
			return nil, err
		}
		def, err := defaultValue(fv)
		if err != nil {
			return nil, err
		}
		fs.Fields = append(fs.Fields, Field{
			Name:    iter.Label(),
			Type:    typ,
			Default: def,
		})
	}

	return fs, nil
}

// DraftKey is the form ID and storage key of the blank "new" form.
func (fs *FormSchema) DraftKey() string {
	return "new-" + fs.Name
}

// EditFormID is the form ID of the edit form for an existing record.
func (fs *FormSchema) EditFormID(recordID string) string {
	return fs.Name + "-" + recordID
}

// Defaults returns a fresh copy of the field defaults.
func (fs *FormSchema) Defaults() ir.IRObject {
	out := make(ir.IRObject, len(fs.Fields))
	for _, f := range fs.Fields {
		out[f.Name] = ir.Clone(f.Default)
	}
	return out
}

// Validate checks data against the field definitions. Empty strings and
// nulls count as unset, the same way the diff engine sees them.
func (fs *FormSchema) Validate(data ir.IRObject) error {
	known := make(map[string]bool, len(fs.Fields))
	for _, f := range fs.Fields {
		known[f.Name] = true
	}
	for _, k := range data.SortedKeys() {
		if !known[k] {
			return &CompileError{
				Field:   fmt.Sprintf("%s.%s", fs.Name, k),
				Message: "unknown field",
			}
		}
	}

	normalized := diff.Normalize(data)
	raw, err := ir.MarshalCanonical(normalized)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", fs.Name, err)
	}

	dataVal := fs.value.Context().CompileBytes(raw, cue.Filename(fs.Name+".json"))
	if err := dataVal.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := fs.value.Unify(dataVal).Validate(); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// typeName converts a CUE field constraint to a type name.
// Floats are forbidden: money is integer cents.
func typeName(v cue.Value) (string, error) {
	k := v.IncompleteKind()
	if k&cue.FloatKind != 0 {
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int cents instead",
			Pos:     v.Pos(),
		}
	}

	nullable := k&cue.NullKind != 0 && k != cue.NullKind
	var name string
	switch k &^ cue.NullKind {
	case cue.StringKind:
		name = "string"
	case cue.IntKind:
		name = "int"
	case cue.BoolKind:
		name = "bool"
	case cue.ListKind:
		name = "array"
	case cue.StructKind:
		name = "object"
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", k),
			Pos:     v.Pos(),
		}
	}
	if nullable {
		name += "?"
	}
	return name, nil
}

// defaultValue resolves the field's default. Incomplete fields are null.
func defaultValue(v cue.Value) (ir.IRValue, error) {
	d, _ := v.Default()
	if !d.IsConcrete() {
		return ir.IRNull{}, nil
	}
	return toIR(d)
}

func toIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := defaultValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := defaultValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind:
		return nil, &CompileError{
			Field:   "default",
			Message: "float defaults are forbidden - use int cents instead",
			Pos:     v.Pos(),
		}
	default:
		return ir.IRNull{}, nil
	}
}

// CompileError is a schema error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
