package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/schema"
)

// FormInfo describes one form in schema output.
type FormInfo struct {
	Name     string      `json:"name"`
	Label    string      `json:"label"`
	DraftKey string      `json:"draft_key"`
	Fields   []FieldInfo `json:"fields,omitempty"`
}

// FieldInfo describes one form field.
type FieldInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default"`
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Check and show form definitions",
		Long: `Check and show the CUE form definitions.

Without a directory argument the built-in CRM forms are used, or
$FORMGUARD_SCHEMA_DIR when set.

Examples:
  formguard schema validate ./forms
  formguard schema validate --form invoice --data invoice.json
  formguard schema show
  formguard schema show client --format json`,
	}

	cmd.AddCommand(newSchemaValidateCommand(rootOpts))
	cmd.AddCommand(newSchemaShowCommand(rootOpts))

	return cmd
}

func newSchemaValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var formName, dataPath string

	cmd := &cobra.Command{
		Use:           "validate [schema-dir]",
		Short:         "Compile form definitions and optionally check a snapshot",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (formName == "") != (dataPath == "") {
				return NewExitError(ExitCommandError, "--form and --data go together")
			}

			catalog, err := loadCatalog(rootOpts, args)
			if err != nil {
				return err
			}
			out := newFormatter(rootOpts, cmd)

			if formName == "" {
				if out.JSON() {
					return out.Success(map[string]any{"forms": catalog.Names()})
				}
				return out.Success(fmt.Sprintf("%s %d form(s) valid", passMark, len(catalog.Names())))
			}

			fs, ok := catalog.Form(formName)
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("no form named %q", formName))
			}
			data, err := readSnapshot(dataPath)
			if err != nil {
				return err
			}
			if err := fs.Validate(data); err != nil {
				if out.JSON() {
					if encErr := out.Error("E_INVALID_DATA", err.Error(), nil); encErr != nil {
						return encErr
					}
				}
				return WrapExitError(ExitFailure, fmt.Sprintf("%s does not fit the %s form", dataPath, formName), err)
			}

			if out.JSON() {
				return out.Success(map[string]any{"form": formName, "valid": true})
			}
			return out.Success(fmt.Sprintf("%s %s fits the %s form", passMark, dataPath, formName))
		},
	}

	cmd.Flags().StringVar(&formName, "form", "", "form to check --data against")
	cmd.Flags().StringVar(&dataPath, "data", "", "JSON snapshot to validate")

	return cmd
}

func newSchemaShowCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:           "show [form]",
		Short:         "List forms, or the fields of one form",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dirArgs []string
			if dir != "" {
				dirArgs = []string{dir}
			}
			catalog, err := loadCatalog(rootOpts, dirArgs)
			if err != nil {
				return err
			}

			names := catalog.Names()
			if len(args) == 1 {
				if _, ok := catalog.Form(args[0]); !ok {
					return NewExitError(ExitCommandError, fmt.Sprintf("no form named %q", args[0]))
				}
				names = args
			}

			infos := make([]FormInfo, 0, len(names))
			for _, name := range names {
				fs, _ := catalog.Form(name)
				info := FormInfo{Name: fs.Name, Label: fs.Label, DraftKey: fs.DraftKey()}
				if len(args) == 1 {
					info.Fields = fieldInfos(fs)
				}
				infos = append(infos, info)
			}

			out := newFormatter(rootOpts, cmd)
			if out.JSON() {
				return out.Success(infos)
			}

			var rows [][]string
			if len(args) == 1 {
				for _, f := range infos[0].Fields {
					rows = append(rows, []string{f.Name, f.Type, f.Default})
				}
				return out.Table([]string{"field", "type", "default"}, rows)
			}
			for _, info := range infos {
				rows = append(rows, []string{info.Name, info.Label, info.DraftKey})
			}
			return out.Table([]string{"form", "label", "draft key"}, rows)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "schema directory (default: built-in forms)")

	return cmd
}

// loadCatalog compiles the schema directory given as the first arg, the
// configured one, or the built-in forms.
func loadCatalog(rootOpts *RootOptions, args []string) (*schema.Catalog, error) {
	dir := rootOpts.Config.SchemaDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		catalog, err := schema.Default()
		if err != nil {
			return nil, WrapExitError(ExitFailure, "built-in forms do not compile", err)
		}
		return catalog, nil
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("schema directory not found: %s", dir))
	}
	catalog, err := schema.Load(dir)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "schema does not compile", err)
	}
	rootOpts.logger().Debug("schema loaded", "dir", dir, "forms", len(catalog.Names()))
	return catalog, nil
}

func fieldInfos(fs *schema.FormSchema) []FieldInfo {
	fields := make([]FieldInfo, len(fs.Fields))
	for i, f := range fs.Fields {
		def := "null"
		if f.Default != nil {
			if b, err := ir.MarshalCanonical(f.Default); err == nil {
				def = string(b)
			}
		}
		fields[i] = FieldInfo{Name: f.Name, Type: f.Type, Default: def}
	}
	return fields
}
