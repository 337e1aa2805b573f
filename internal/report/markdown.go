package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/perflens/perflens/internal/shift"
)

// RenderMarkdown formats a report for human or LLM consumption. The
// layout is presentation, not a machine contract; the JSON report is
// the stable shape.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Performance attribution: %s\n\n", r.PageURL)
	if !r.Complete {
		sb.WriteString("> Partial data: some inputs were missing or skipped; findings below are best-effort.\n\n")
	}

	if r.Coverage != nil {
		sb.WriteString("## Code coverage\n\n")
		fmt.Fprintf(&sb, "- Total bytes: %d\n", r.Coverage.TotalBytes)
		fmt.Fprintf(&sb, "- Unused bytes: %d (%d%%)\n", r.Coverage.UnusedBytes, r.Coverage.WastePercent)
		sb.WriteString("\n")

		for _, f := range r.Coverage.Files {
			if f.Severity == "ok" {
				continue
			}
			fmt.Fprintf(&sb, "### [%s] %s\n\n", strings.ToUpper(string(f.Severity)), f.URL)
			fmt.Fprintf(&sb, "- unused: %d%% (%d bytes)\n", f.UnusedPercent, f.UnusedBytes)
			fmt.Fprintf(&sb, "- pre-paint: %d%%, post-paint: %d%%\n\n", f.PrePercent, f.PostPercent)
		}

		if len(r.Coverage.HotPaths) > 0 {
			sb.WriteString("### Hot paths\n\n")
			for _, h := range r.Coverage.HotPaths {
				fmt.Fprintf(&sb, "- %s (%s): executed %d times\n", h.Unit, h.URL, h.ExecutionCount)
			}
			sb.WriteString("\n")
		}

		for _, bd := range r.Coverage.Breakdowns {
			fmt.Fprintf(&sb, "### Breakdown: %s\n\n", bd.URL)
			if len(bd.PostPaintUnits) > 0 {
				fmt.Fprintf(&sb, "- loaded before paint but used after: %s", strings.Join(bd.PostPaintUnits, ", "))
				if bd.PostPaintMore > 0 {
					fmt.Fprintf(&sb, " +%d more", bd.PostPaintMore)
				}
				sb.WriteString("\n")
			}
			if len(bd.UnusedUnits) > 0 {
				fmt.Fprintf(&sb, "- never used: %s", strings.Join(bd.UnusedUnits, ", "))
				if bd.UnusedMore > 0 {
					fmt.Fprintf(&sb, " +%d more", bd.UnusedMore)
				}
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}

	if r.Shifts != nil {
		sb.WriteString("## Layout shifts\n\n")
		fmt.Fprintf(&sb, "- Total shifts: %d\n", r.Shifts.TotalShifts)
		fmt.Fprintf(&sb, "- CLS: %.4f\n\n", r.Shifts.TotalCLS)

		causes := make([]string, 0, len(r.Shifts.ByType))
		for cause := range r.Shifts.ByType {
			causes = append(causes, string(cause))
		}
		sort.Strings(causes)
		for _, cause := range causes {
			stats := r.Shifts.ByType[shift.CauseType(cause)]
			fmt.Fprintf(&sb, "- %s: %d shifts, %.4f total value\n", cause, stats.Count, stats.Value)
		}
		if len(r.Shifts.TopIssues) > 0 {
			sb.WriteString("\n### Top shifts\n\n")
			for _, es := range r.Shifts.TopIssues {
				fmt.Fprintf(&sb, "- value %.4f at %.0fms: %s", es.Value, es.StartTime, es.Cause.Type)
				if es.Cause.Recommendation != "" {
					fmt.Fprintf(&sb, ": %s", es.Cause.Recommendation)
				}
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	if r.ThirdParty != nil {
		sb.WriteString("## Third-party scripts\n\n")
		fmt.Fprintf(&sb, "- Scripts: %d (%d render-blocking)\n", r.ThirdParty.Summary.ScriptCount, r.ThirdParty.Summary.RenderBlocking)
		fmt.Fprintf(&sb, "- Transfer: %d bytes\n", r.ThirdParty.Summary.TransferSize)
		fmt.Fprintf(&sb, "- Main-thread blocking: %.0fms\n\n", r.ThirdParty.Summary.BlockingTime)

		for _, ci := range r.ThirdParty.CategoryImpact {
			fmt.Fprintf(&sb, "### %s\n\n", ci.Category)
			fmt.Fprintf(&sb, "- scripts: %d, transfer: %d bytes\n", ci.ScriptCount, ci.TransferSize)
			fmt.Fprintf(&sb, "- execution: %.0fms, blocking: %.0fms\n", ci.ExecutionTime, ci.BlockingTime)
			fmt.Fprintf(&sb, "- LCP criticality: %s\n", ci.Criticality)
			fmt.Fprintf(&sb, "- preconnect: %s, action: %s (%s)\n\n", ci.Policy.Preconnect, ci.Policy.Action, ci.Policy.Rationale)
		}
	}

	return sb.String()
}
