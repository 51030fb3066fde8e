package schema

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formguard/internal/ir"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"cleaner", "client", "invoice", "job", "lead", "quote"}, cat.Names())

	job, ok := cat.Form("job")
	require.True(t, ok)
	assert.Equal(t, "job", job.Label)
	assert.Equal(t, "new-job", job.DraftKey())
	assert.Equal(t, "job-rec123", job.EditFormID("rec123"))

	_, ok = cat.Form("payroll")
	assert.False(t, ok)
}

func TestDefaultsFromCUE(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	job, _ := cat.Form("job")
	defaults := job.Defaults()

	assert.Equal(t, ir.IRString("Scheduled"), defaults["status"])
	assert.Equal(t, ir.IRInt(0), defaults["priceCents"])
	assert.Equal(t, ir.IRString(""), defaults["notes"])
	assert.Equal(t, ir.IRArray{}, defaults["cleaners"])
	assert.Equal(t, ir.IRNull{}, defaults["scheduledDate"], "no default means null")

	cleaner, _ := cat.Form("cleaner")
	assert.Equal(t, ir.IRBool(true), cleaner.Defaults()["active"])
}

func TestDefaultsAreFreshCopies(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	client, _ := cat.Form("client")

	first := client.Defaults()
	first["tags"] = ir.IRArray{ir.IRString("vip")}

	assert.Equal(t, ir.IRArray{}, client.Defaults()["tags"])
}

func TestFieldTypes(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	job, _ := cat.Form("job")

	types := map[string]string{}
	for _, f := range job.Fields {
		types[f.Name] = f.Type
	}
	assert.Equal(t, "string", types["status"])
	assert.Equal(t, "int", types["priceCents"])
	assert.Equal(t, "array", types["cleaners"])
	assert.Equal(t, "string?", typeNameOf(t, `x: null | string`))
}

func TestFieldOrderFollowsSource(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	lead, _ := cat.Form("lead")

	var names []string
	for _, f := range lead.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "email", "phone", "source", "message"}, names)
}

func TestValidate(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	job, _ := cat.Form("job")

	tests := []struct {
		name    string
		data    ir.IRObject
		wantErr string
	}{
		{
			name: "valid partial",
			data: ir.IRObject{"status": ir.IRString("Completed"), "priceCents": ir.IRInt(12000)},
		},
		{
			name: "cleared fields are unset",
			data: ir.IRObject{"notes": ir.IRString(""), "scheduledDate": ir.IRNull{}},
		},
		{
			name:    "unknown field",
			data:    ir.IRObject{"colour": ir.IRString("red")},
			wantErr: "job.colour: unknown field",
		},
		{
			name:    "enum conflict",
			data:    ir.IRObject{"status": ir.IRString("Lost")},
			wantErr: "status",
		},
		{
			name:    "type conflict",
			data:    ir.IRObject{"priceCents": ir.IRString("120.00")},
			wantErr: "priceCents",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := job.Validate(tt.data)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileRejectsFloat(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		form: payment: {
			fields: {
				amount: float | *0.0
			}
		}
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "type", ce.Field)
}

func TestCompileRequiresFields(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`form: empty: { label: "empty" }`)
	require.NoError(t, v.Err())

	_, err := Compile(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form.empty.fields")
}

func TestCompileRequiresForms(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: 1`)
	require.NoError(t, v.Err())

	_, err := Compile(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no forms defined")
}

func TestLabelDefaultsToName(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`form: estimate: { fields: { notes: string | *"" } }`)
	require.NoError(t, v.Err())

	cat, err := Compile(v)
	require.NoError(t, err)
	fs, ok := cat.Form("estimate")
	require.True(t, ok)
	assert.Equal(t, "estimate", fs.Label)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `package forms

form: estimate: {
	label: "estimate"
	fields: {
		client:     string | *""
		totalCents: int | *0
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "estimate.cue"), []byte(src), 0o644))

	cat, err := Load(dir)
	require.NoError(t, err)

	fs, ok := cat.Form("estimate")
	require.True(t, ok)
	assert.Equal(t, ir.IRObject{"client": ir.IRString(""), "totalCents": ir.IRInt(0)}, fs.Defaults())
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema directory")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "client.colour", Message: "unknown field"}
	assert.Equal(t, "client.colour: unknown field", err.Error())
}

func typeNameOf(t *testing.T, src string) string {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	name, err := typeName(v.LookupPath(cue.ParsePath("x")))
	require.NoError(t, err)
	return name
}
