package agent

import (
	"fmt"
	"strings"

	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/types"
)

type summarySection struct {
	title  string
	fields []string
}

var summarySections = map[types.FormType][]summarySection{
	types.FormComplaint: {
		{"🚗 Vehicle", []string{"Make", "Model", "Model_Year", "VIN", "Mileage"}},
		{"📍 Incident", []string{"Date_Complaint", "City", "State", "Speed", "Component", "Crash", "Fire", "Injured", "Deaths"}},
		{"📝 Description", []string{"Description"}},
	},
	types.FormFeedback: {
		{"💬 Feedback", []string{"Feedback_Topic", "Feedback_Cause_Help"}},
	},
}

// Summary renders the filled user fields of a record for the review screen.
// Fields not covered by a section are listed under "Other".
func Summary(s *form.Schema, record types.Record) string {
	covered := map[string]bool{}
	var blocks []string
	write := func(title string, names []string) {
		var lines []string
		for _, name := range names {
			covered[name] = true
			d, ok := s.Field(name)
			if !ok || d.System || !record.Has(name) {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", strings.ReplaceAll(name, "_", " "), record[name]))
		}
		if len(lines) > 0 {
			blocks = append(blocks, "**"+title+"**\n"+strings.Join(lines, "\n"))
		}
	}
	for _, section := range summarySections[s.Type] {
		write(section.title, section.fields)
	}
	var rest []string
	for _, d := range s.UserFields() {
		if !covered[d.Name] {
			rest = append(rest, d.Name)
		}
	}
	write("Other", rest)
	return strings.Join(blocks, "\n\n")
}
