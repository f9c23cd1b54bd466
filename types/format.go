package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

func formatFieldsSection(title string, fields []FieldInfo) string {
	if len(fields) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString(title)
	buf.WriteString("\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Description", "Example")
	for _, field := range fields {
		_ = table.Append(field.Name, field.Description, field.Example)
	}
	_ = table.Render()
	return buf.String()
}

func formatIssuesSection(issues []FieldIssue) string {
	if len(issues) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Rejected values:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value", "Reason")
	for _, issue := range issues {
		_ = table.Append(issue.Field, issue.Value, issue.Reason)
	}
	_ = table.Render()
	return buf.String()
}

func formatRecentSection(recent []*schema.Message) string {
	if len(recent) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Recent conversation:\n")
	for _, m := range recent {
		if m == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", m.Role, m.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatToolRequest renders the request as markdown sections for a user message.
func FormatToolRequest(req *ToolRequest) (string, error) {
	record := req.Record
	if record == nil {
		record = Record{}
	}
	recordJSON, err := sonic.ConfigStd.Marshal(record)
	if err != nil {
		return "", err
	}
	sections := []string{
		fmt.Sprintf("# Current Date:\n%s", time.Now().Format("2006-01-02")),
		fmt.Sprintf("# Form type:\n%s", req.FormType),
		fmt.Sprintf("# Record JSON:\n```json\n%s\n```", string(recordJSON)),
	}
	if req.Phase != "" {
		sections = append(sections, fmt.Sprintf("# Current Phase:\n%s", req.Phase))
	}
	if req.Action != "" {
		sections = append(sections, fmt.Sprintf("# Next action:\n%s", req.Action))
	}
	if s := formatFieldsSection("# Fields in scope:", req.Scope); s != "" {
		sections = append(sections, s)
	}
	if req.ScopeSchema != "" {
		sections = append(sections, fmt.Sprintf("# Scope schema JSON:\n```json\n%s\n```", req.ScopeSchema))
	}
	if s := formatFieldsSection("# Still missing:", req.MissingFields); s != "" {
		sections = append(sections, s)
	}
	if s := formatIssuesSection(req.Issues); s != "" {
		sections = append(sections, s)
	}
	if len(req.Accepted) > 0 {
		accepted := append([]string(nil), req.Accepted...)
		sort.Strings(accepted)
		sections = append(sections, fmt.Sprintf("# Just recorded:\n%s", strings.Join(accepted, ", ")))
	}
	if len(req.Locked) > 0 {
		sections = append(sections, fmt.Sprintf("# Confirmed and locked:\n%s", strings.Join(req.Locked, ", ")))
	}
	if s := formatRecentSection(req.Recent); s != "" {
		sections = append(sections, s)
	}
	if req.UserInput != "" {
		sections = append(sections, fmt.Sprintf("# User message:\n%s", req.UserInput))
	}
	return strings.Join(sections, "\n\n"), nil
}
