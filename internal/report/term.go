package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/perflens/perflens/internal/coverage"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func severityStyle(s coverage.Severity) lipgloss.Style {
	switch s {
	case coverage.SeverityCritical:
		return criticalStyle
	case coverage.SeverityOptimize:
		return warnStyle
	default:
		return okStyle
	}
}

// RenderTerminal formats a report for the CLI with severity coloring.
func RenderTerminal(r *Report) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("perflens · "+r.PageURL) + "\n")
	if !r.Complete {
		sb.WriteString(warnStyle.Render("partial data: some inputs were missing") + "\n")
	}
	sb.WriteString("\n")

	if r.Coverage != nil {
		sb.WriteString(sectionStyle.Render("Coverage") + "\n")
		fmt.Fprintf(&sb, "  %d bytes total, %s unused\n",
			r.Coverage.TotalBytes,
			warnStyle.Render(fmt.Sprintf("%d%%", r.Coverage.WastePercent)))
		for _, f := range r.Coverage.Files {
			style := severityStyle(f.Severity)
			fmt.Fprintf(&sb, "  %s %s %s\n",
				style.Render(fmt.Sprintf("%-8s", f.Severity)),
				f.URL,
				dimStyle.Render(fmt.Sprintf("%d%% unused, pre %d%% / post %d%%",
					f.UnusedPercent, f.PrePercent, f.PostPercent)))
		}
		sb.WriteString("\n")
	}

	if r.Shifts != nil {
		sb.WriteString(sectionStyle.Render("Layout shifts") + "\n")
		fmt.Fprintf(&sb, "  %d shifts, CLS %.4f\n", r.Shifts.TotalShifts, r.Shifts.TotalCLS)
		for _, es := range r.Shifts.TopIssues {
			fmt.Fprintf(&sb, "  %.4f  %s %s\n", es.Value, es.Cause.Type,
				dimStyle.Render(es.Cause.Recommendation))
		}
		sb.WriteString("\n")
	}

	if r.ThirdParty != nil {
		sb.WriteString(sectionStyle.Render("Third-party") + "\n")
		fmt.Fprintf(&sb, "  %d scripts, %.0fms blocking\n",
			r.ThirdParty.Summary.ScriptCount, r.ThirdParty.Summary.BlockingTime)
		for _, ci := range r.ThirdParty.CategoryImpact {
			fmt.Fprintf(&sb, "  %-16s exec %.0fms  block %.0fms  %s\n",
				ci.Category, ci.ExecutionTime, ci.BlockingTime,
				dimStyle.Render(fmt.Sprintf("preconnect=%s %s", ci.Policy.Preconnect, ci.Policy.Action)))
		}
	}

	return sb.String()
}
