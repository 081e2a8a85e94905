package faultcode

import (
	"fmt"
	"strings"
)

// Placeholder fills any field a source could not provide.
const Placeholder = "Information not available"

// Report is the stage-neutral shape every resolution stage produces before
// it is rendered. Body, when set, replaces the description/causes/solutions
// sections with free-form text.
type Report struct {
	Code         string
	Equipment    string
	Description  string
	Causes       []string
	Solutions    []string
	Severity     string
	Safety       string
	Manufacturer string
	Source       string
	Body         string
}

// FromRecord builds a report for a table hit.
func FromRecord(r Record, equipment string) Report {
	return Report{
		Code:        r.Code,
		Equipment:   equipment,
		Description: r.Description,
		Causes:      r.Causes,
		Solutions:   r.Solutions,
		Severity:    r.Severity,
		Safety:      r.Safety,
	}
}

// Format renders a report as the multi-section analysis text.
func Format(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fault Code Analysis: %s\n", r.Code)
	fmt.Fprintf(&b, "Equipment: %s\n", r.Equipment)
	if r.Manufacturer != "" {
		fmt.Fprintf(&b, "Manufacturer: %s\n", r.Manufacturer)
	}

	if r.Body != "" {
		b.WriteString("\nAnalysis:\n")
		b.WriteString(strings.TrimSpace(r.Body))
		b.WriteString("\n")
	} else {
		b.WriteString("\nDescription:\n")
		b.WriteString(orPlaceholder(r.Description))
		b.WriteString("\n")
		writeList(&b, "Possible Causes:", r.Causes)
		writeList(&b, "Recommended Solutions:", r.Solutions)
	}

	if r.Severity != "" {
		fmt.Fprintf(&b, "\nSeverity: %s\n", r.Severity)
	}
	b.WriteString("\nSafety Information:\n")
	b.WriteString(orPlaceholder(r.Safety))
	b.WriteString("\n")
	if r.Source != "" {
		fmt.Fprintf(&b, "\nSource: %s\n", r.Source)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString("\n")
	if len(items) == 0 {
		items = []string{Placeholder}
	}
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// Safety texts keyed off severity.
const (
	SafetyHigh    = "This is a serious issue that requires immediate attention. Do not drive the vehicle until resolved."
	SafetyMedium  = "This issue should be addressed soon. Limit driving until the problem is resolved."
	SafetyGeneral = "Follow standard safety procedures when working on the vehicle. Disconnect the battery before working on electrical components."
)

// DeriveSafety picks safety guidance from a free-text severity.
func DeriveSafety(severity string) string {
	s := strings.ToLower(severity)
	switch {
	case strings.Contains(s, "high"):
		return SafetyHigh
	case strings.Contains(s, "medium"):
		return SafetyMedium
	default:
		return SafetyGeneral
	}
}
