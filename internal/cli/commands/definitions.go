package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easyblocks/easyblocks/internal/cli/ui"
	"github.com/easyblocks/easyblocks/internal/logger"
)

// NewDefinitionsCommand creates the definitions command
func NewDefinitionsCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "definitions [component]",
		Aliases: []string{"defs"},
		Short:   "List registered components, devices and locales",
		Long: `List the components the editor can place, or the props of one
component.

Examples:
  easyblocks definitions
  easyblocks definitions Stack
  easyblocks definitions --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger.NewStructured(cfg.Log.Level, cfg.Log.Format), nil)
			if err != nil {
				return err
			}
			defs := a.compiler.Registry().Serialize()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}

			if len(args) == 1 {
				def, ok := defs.Find(args[0])
				if !ok {
					ids := make([]string, len(defs.Components))
					for i, c := range defs.Components {
						ids[i] = c.ID
					}
					fmt.Fprint(cmd.ErrOrStderr(), ui.UnknownError("component", args[0], ids, g.noColor))
					return fmt.Errorf("unknown component %q", args[0])
				}
				table := ui.NewTable(out, g.noColor, "PROP", "TYPE", "RESPONSIVE", "LABEL")
				for _, p := range def.Schema {
					responsive := ""
					if p.Responsive {
						responsive = "yes"
					}
					table.AddRow(p.Prop, p.Type, responsive, p.DisplayLabel())
				}
				table.Render()
				return nil
			}

			table := ui.NewTable(out, g.noColor, "ID", "KIND", "TAGS", "LABEL")
			for _, c := range defs.Components {
				table.AddRow(c.ID, "component", strings.Join(c.Type, ","), c.Label)
			}
			for _, c := range defs.Actions {
				table.AddRow(c.ID, "action", strings.Join(c.Type, ","), c.Label)
			}
			for _, c := range defs.Links {
				table.AddRow(c.ID, "link", strings.Join(c.Type, ","), c.Label)
			}
			for _, c := range defs.TextModifiers {
				table.AddRow(c.ID, "text-modifier", strings.Join(c.Type, ","), c.Label)
			}
			table.Render()

			global := a.compiler.Global()
			fmt.Fprintln(out)
			kv := ui.NewKeyValueTable(out, g.noColor)
			kv.AddRow("Devices", strings.Join(global.Devices.IDs(), ", "))
			kv.AddRow("Main device", global.Devices.Main().ID)
			codes := make([]string, len(global.Locales))
			for i, l := range global.Locales {
				codes[i] = l.Code
			}
			kv.AddRow("Locales", strings.Join(codes, ", "))
			kv.AddRow("Default locale", global.DefaultLocale())
			kv.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the definitions as JSON")
	return cmd
}
