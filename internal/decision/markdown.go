package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders DecisionResult as Markdown string.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	// Decision header
	sb.WriteString("# Decision Gate Report\n\n")
	if result.StrategyID != "" {
		sb.WriteString(fmt.Sprintf("Strategy: `%s`, scenario: `%s`", result.StrategyID, result.ScenarioID))
		if result.RunID != "" {
			sb.WriteString(fmt.Sprintf(", run: `%s`", result.RunID))
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("## Decision: %s\n\n", result.Decision))

	WriteChecklist(&sb, result)

	// Summary
	sb.WriteString("## Summary\n\n")
	if result.Decision == DecisionGO {
		sb.WriteString("All GO criteria passed and no NO-GO triggers fired.\n")
	} else {
		sb.WriteString("Decision is NO-GO due to:\n")
		for _, c := range result.GOCriteria {
			if !c.Pass {
				sb.WriteString(fmt.Sprintf("- GO criterion failed: %s (actual: %s)\n", c.Name, c.Actual))
			}
		}
		for _, c := range result.NOGOChecks {
			if !c.Pass {
				sb.WriteString(fmt.Sprintf("- NO-GO trigger fired: %s (actual: %s)\n", c.Name, c.Actual))
			}
		}
	}

	return sb.String()
}

// WriteChecklist writes the GO and NO-GO tables with their counts. It is
// shared with the run report.
func WriteChecklist(sb *strings.Builder, result *DecisionResult) {
	sb.WriteString("## GO Criteria\n\n")
	sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-----------|-----------|--------|------|\n")
	goPassed, goCounted := 0, 0
	for i, c := range result.GOCriteria {
		passStr := "PASS"
		switch {
		case c.Skipped:
			passStr = "N/A"
		case !c.Pass:
			passStr = "FAIL"
		}
		if !c.Skipped {
			goCounted++
			if c.Pass {
				goPassed++
			}
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, passStr))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("GO Criteria: %d/%d passed\n\n", goPassed, goCounted))

	sb.WriteString("## NO-GO Triggers\n\n")
	sb.WriteString("| # | Trigger | Condition | Actual | Status |\n")
	sb.WriteString("|---|---------|-----------|--------|--------|\n")
	nogoTriggered := 0
	for i, c := range result.NOGOChecks {
		statusStr := "NOT TRIGGERED"
		if !c.Pass { // Pass=false means triggered
			statusStr = "TRIGGERED"
			nogoTriggered++
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, statusStr))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("NO-GO Triggers: %d/%d triggered\n\n", nogoTriggered, len(result.NOGOChecks)))
}
