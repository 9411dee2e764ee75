// ABOUTME: Terminal rendering of the popular tag table printed by -popular-tags.
// ABOUTME: One lipgloss-styled column per period, tags ranked by use.
package main

import (
	"fmt"
	"strings"

	"github.com/2389-research/tagfeed/timeline"
	"github.com/charmbracelet/lipgloss"
)

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1).
			MarginRight(1)

	periodStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	tagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

// renderPopularTags lays out one bordered column per period.
func renderPopularTags(periods []timeline.PeriodTags) string {
	if len(periods) == 0 {
		return emptyStyle.Render("no periods")
	}

	columns := make([]string, 0, len(periods))
	for _, p := range periods {
		columns = append(columns, columnStyle.Render(renderPeriod(p)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func renderPeriod(p timeline.PeriodTags) string {
	var b strings.Builder
	b.WriteString(periodStyle.Render(fmt.Sprintf("Last %d days", p.Days)))
	if len(p.Tags) == 0 {
		b.WriteString("\n" + emptyStyle.Render("no tags yet"))
		return b.String()
	}

	width := 0
	for _, t := range p.Tags {
		width = max(width, len(t.Name)+1)
	}
	for i, t := range p.Tags {
		name := fmt.Sprintf("%-*s", width, "#"+t.Name)
		fmt.Fprintf(&b, "\n%2d. %s %s", i+1, tagStyle.Render(name), countStyle.Render(fmt.Sprint(t.Count)))
	}
	return b.String()
}
