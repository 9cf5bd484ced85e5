package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/module"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run MODULE [KEY=VALUE...]",
		Short: "Run an onboarding module",
		Long: `Run a named onboarding module with KEY=VALUE inputs. Dict inputs take a
YAML or JSON mapping, e.g. import_config='{include_files: [.csv]}'.
Use 'onboard modules' to list the modules and their inputs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(cmd, args[0], args[1:])
		},
	}
}

func runModule(cmd *cobra.Command, name string, rawInputs []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := module.NewRegistry()
	if err != nil {
		return err
	}
	mod, err := registry.Get(name)
	if err != nil {
		return err
	}
	inputs, err := parseInputs(mod.Inputs, rawInputs)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	outputs, err := mod.Process(cmd.Context(), orch, cfg.ModuleConfig(), inputs)
	if err != nil {
		return fmt.Errorf("module %s failed: %w", name, err)
	}

	return render(cmd.OutOrStdout(), cfg.Settings.OutputFormat, map[string]any(outputs))
}

// parseInputs turns KEY=VALUE arguments into module values typed after the
// input schema. Unknown keys are passed through so schema validation can
// report them.
func parseInputs(schema module.Schema, raw []string) (module.ValueMap, error) {
	values := module.ValueMap{}
	for _, arg := range raw {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("input '%s' is not KEY=VALUE: %w", arg, onboarderrors.ErrInvalidInput)
		}

		switch schema[key].Type {
		case module.TypeBoolean:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w: %v", key, onboarderrors.ErrInvalidInput, err)
			}
			values[key] = b
		case module.TypeDict:
			var dict map[string]any
			if err := yaml.Unmarshal([]byte(value), &dict); err != nil {
				return nil, fmt.Errorf("input %s: %w: %v", key, onboarderrors.ErrInvalidInput, err)
			}
			values[key] = dict
		default:
			values[key] = value
		}
	}
	return values, nil
}

// NewModulesCmd creates the modules command.
func NewModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules [MODULE]",
		Short: "List onboarding modules",
		Long:  "List the onboarding modules, or show the inputs and outputs of one module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := module.NewRegistry()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if cfg.Settings.OutputFormat != formatText {
					return render(out, cfg.Settings.OutputFormat, registry.Names())
				}
				tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
				_, _ = fmt.Fprintln(tw, "MODULE\tDESCRIPTION")
				for _, n := range registry.Names() {
					m, _ := registry.Get(n)
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", m.Name, m.Doc)
				}
				return tw.Flush()
			}

			m, err := registry.Get(args[0])
			if err != nil {
				return err
			}
			if cfg.Settings.OutputFormat != formatText {
				return render(out, cfg.Settings.OutputFormat, map[string]any{
					"name": m.Name, "doc": m.Doc, "inputs": m.Inputs, "outputs": m.Outputs,
				})
			}
			_, _ = fmt.Fprintf(out, "%s: %s\n", m.Name, m.Doc)
			tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
			writeSchema(tw, "INPUT", m.Inputs)
			writeSchema(tw, "OUTPUT", m.Outputs)
			return tw.Flush()
		},
	}
}

func writeSchema(tw *tabwriter.Writer, title string, s module.Schema) {
	_, _ = fmt.Fprintf(tw, "\n%s\tTYPE\tREQUIRED\tDESCRIPTION\n", title)
	for _, n := range s.Names() {
		f := s[n]
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", n, f.Type, !f.Optional, f.Doc)
	}
}
