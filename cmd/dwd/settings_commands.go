package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dwd/internal/app"
	"dwd/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change application settings",
	}
	cmd.AddCommand(newSettingsListCommand(ctx))
	cmd.AddCommand(newSettingsGetCommand(ctx))
	cmd.AddCommand(newSettingsSetCommand(ctx))
	cmd.AddCommand(newSettingsResetCommand(ctx))
	cmd.AddCommand(newSettingsExportCommand(ctx))
	cmd.AddCommand(newSettingsImportCommand(ctx))
	return cmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List registered settings grouped by category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = strings.TrimSpace(args[0])
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				defs := filterDefinitions(rt.Settings.Definitions(), prefix)
				if jsonOutput {
					values := make(map[string]any, len(defs))
					for _, def := range defs {
						values[def.Key] = rt.Settings.Get(def.Key, nil)
					}
					return writeJSON(cmd, values)
				}
				if len(defs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No settings match")
					return nil
				}
				printSettingsTables(cmd, rt.Settings, defs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func filterDefinitions(defs []settings.Definition, prefix string) []settings.Definition {
	if prefix == "" {
		return defs
	}
	prefix = strings.TrimSuffix(prefix, ".")
	var out []settings.Definition
	for _, def := range defs {
		if def.Key == prefix || strings.HasPrefix(def.Key, prefix+".") {
			out = append(out, def)
		}
	}
	return out
}

func printSettingsTables(cmd *cobra.Command, store *settings.Store, defs []settings.Definition) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	grouped := make(map[string][]settings.Definition)
	for _, def := range defs {
		grouped[def.Category()] = append(grouped[def.Category()], def)
	}
	categories := make([]string, 0, len(grouped))
	for category := range grouped {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for i, category := range categories {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, heading(category, colorize))
		rows := make([][]string, 0, len(grouped[category]))
		for _, def := range grouped[category] {
			rows = append(rows, []string{
				def.Key,
				formatSettingValue(store.Get(def.Key, nil)),
				formatSettingValue(def.Default),
				yesNo(def.Persistent),
				def.Description,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Key", "Value", "Default", "Persistent", "Description"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			colorize,
		))
	}
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				value, ok := rt.Settings.Lookup(key)
				if !ok {
					return fmt.Errorf("%w: %q", settings.ErrNotRegistered, key)
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatSettingValue(value))
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Validate and store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			value := parseSettingValue(args[1])
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if err := rt.Settings.Set(key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, formatSettingValue(rt.Settings.Get(key, nil)))
				return nil
			})
		},
	}
}

func newSettingsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [KEY...]",
		Short: "Restore defaults for the given keys, or for every setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if err := rt.Settings.ResetToDefaults(args...); err != nil {
					return err
				}
				if len(args) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "All settings reset to defaults")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", strings.Join(args, ", "))
				}
				return nil
			})
		},
	}
}

func newSettingsExportCommand(ctx *commandContext) *cobra.Command {
	var persistentOnly bool
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write effective settings to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				data, err := encodeSettings(format, rt.Settings.Export(persistentOnly))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&persistentOnly, "persistent-only", false, "Skip session-only settings")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format: json, yaml or toml")
	return cmd
}

func newSettingsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Validate and apply settings from a json, yaml or toml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := readSettingsFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if err := rt.Settings.Import(values); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d settings from %s\n", len(values), args[0])
				return nil
			})
		},
	}
}
