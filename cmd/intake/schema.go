package main

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/types"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [complaint|feedback]",
		Short: "Print the fields of a form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formType := types.FormComplaint
			if len(args) == 1 {
				formType = types.FormType(args[0])
			}
			s, err := form.Load(formType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				data, mErr := sonic.ConfigStd.MarshalIndent(s.JSONSchema(), "", "  ")
				if mErr != nil {
					return fmt.Errorf("marshal schema: %w", mErr)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			table := tablewriter.NewTable(out, tablewriter.WithRenderer(renderer.NewMarkdown()))
			table.Header("Field", "Rule", "Critical", "Lockable", "Source")
			for _, f := range s.Fields {
				source := "user"
				rule := f.Rule
				if f.System {
					source = "system"
					rule = f.Compute
				}
				_ = table.Append(f.Name, rule, yesNo(f.Critical), yesNo(f.Lockable), source)
			}
			return table.Render()
		},
	}
	cmd.Flags().Bool("json", false, "Print the JSON Schema of the user-supplied fields")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
