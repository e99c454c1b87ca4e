package check

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Report collects and displays check results
type Report struct {
	Results []Result
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{Results: make([]Result, 0)}
}

// Add appends a check result
func (r *Report) Add(result Result) {
	r.Results = append(r.Results, result)
}

// HasFailures reports whether any check failed hard. Warnings do not count.
func (r *Report) HasFailures() bool {
	for _, result := range r.Results {
		if result.Status == StatusFail {
			return true
		}
	}
	return false
}

// Warnings returns the number of warning results
func (r *Report) Warnings() int {
	count := 0
	for _, result := range r.Results {
		if result.Status == StatusWarn {
			count++
		}
	}
	return count
}

// Failures returns the number of failed results
func (r *Report) Failures() int {
	count := 0
	for _, result := range r.Results {
		if result.Status == StatusFail {
			count++
		}
	}
	return count
}

// Print renders the full report to stdout
func (r *Report) Print() {
	printHeader()
	fmt.Println()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for _, result := range r.Results {
		switch result.Status {
		case StatusOK:
			green.Printf("  ✓ %-16s %s\n", result.Name, result.Detail)
		case StatusWarn:
			yellow.Printf("  ⚠ %-16s %s\n", result.Name, result.Detail)
		case StatusFail:
			red.Printf("  ✗ %-16s %s\n", result.Name, result.Detail)
		}
	}

	fmt.Println()
	printSeparator()
	r.printSummary()
}

// printHeader prints the report title
func printHeader() {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	fmt.Println(titleStyle.Render("🔍 PatchLens Environment Check"))
}

// printSeparator prints a separator line
func printSeparator() {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
	fmt.Println(style.Render(strings.Repeat("─", 50)))
}

// printSummary prints the final status line
func (r *Report) printSummary() {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	failures := r.Failures()
	warnings := r.Warnings()

	switch {
	case failures > 0:
		red.Print("✗ Check failed")
	case warnings > 0:
		yellow.Print("⚠ Check completed")
	default:
		green.Print("✓ Check completed")
	}

	var details []string
	if failures > 0 {
		details = append(details, fmt.Sprintf("%d failure(s)", failures))
	}
	if warnings > 0 {
		details = append(details, fmt.Sprintf("%d warning(s)", warnings))
	}

	if len(details) > 0 {
		fmt.Printf(" (%s)\n", strings.Join(details, ", "))
	} else {
		fmt.Println(" - all checks passed")
	}
}
