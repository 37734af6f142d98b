package reporting

import (
	"fmt"
	"strings"
	"time"

	"regime-trader/internal/decision"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Strategy: `%s` | Scenario: `%s`\n\n", s.RunID, s.StrategyID, s.ScenarioID))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", s.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", s.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Total PnL | %.2f |\n", s.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", s.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", s.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", s.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Closing Trades | %d |\n", s.ClosingTrades))
	sb.WriteString(fmt.Sprintf("| Winning Trades | %d |\n", s.WinningTrades))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLosses))
	sb.WriteString(fmt.Sprintf("| Safe Mode Entered | %t |\n", s.SafeModeEntered))
	sb.WriteString(fmt.Sprintf("| Regime Changes | %d |\n", s.RegimeChanges))
	sb.WriteString(fmt.Sprintf("| Skipped Signals | %d |\n", s.SkippedSignals))
	sb.WriteString("\n")

	// Regime Breakdown
	sb.WriteString("## Regime Breakdown\n\n")
	if len(r.RegimeBreakdown) > 0 {
		sb.WriteString("| Regime | Trades | Closes | Wins | WinRate | PnL |\n")
		sb.WriteString("|--------|--------|--------|------|---------|-----|\n")
		for _, row := range r.RegimeBreakdown {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.2f |\n",
				row.Regime, row.Trades, row.Closes, row.Wins, row.WinRate, row.PnL))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Regime Changes
	sb.WriteString("## Regime Changes\n\n")
	switch {
	case len(r.RegimeChanges) > 0:
		sb.WriteString("| Timestamp (ms) | From | To | Confidence |\n")
		sb.WriteString("|----------------|------|----|------------|\n")
		for _, c := range r.RegimeChanges {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f |\n", c.Timestamp, c.From, c.To, c.Confidence))
		}
	case s.RegimeChanges > 0:
		sb.WriteString(fmt.Sprintf("%d regime changes (transitions not stored).\n", s.RegimeChanges))
	default:
		sb.WriteString("No regime changes.\n")
	}
	sb.WriteString("\n")

	// Skipped Signals
	if len(r.SkippedByReason) > 0 {
		sb.WriteString("## Skipped Signals\n\n")
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, row := range r.SkippedByReason {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Reason, row.Count))
		}
		sb.WriteString("\n")
	}

	// Scenario Sensitivity
	if len(r.Scenarios) > 0 {
		sb.WriteString("## Scenario Sensitivity\n\n")
		sb.WriteString("| Run | Scenario | Return | Sharpe | MaxDD | WinRate | Trades |\n")
		sb.WriteString("|-----|----------|--------|--------|-------|---------|--------|\n")
		for _, row := range r.Scenarios {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f%% | %.4f | %.2f%% | %.2f%% | %d |\n",
				row.RunID, row.ScenarioID, row.TotalReturn*100, row.SharpeRatio,
				row.MaxDrawdown*100, row.WinRate*100, row.TotalTrades))
		}
		sb.WriteString("\n")
	}

	// Comparison
	sb.WriteString("## Baseline Comparison\n\n")
	if c := r.Comparison; c != nil {
		sb.WriteString(fmt.Sprintf("Baseline: `%s` (run `%s`)\n\n", c.BaselineStrategyID, c.BaselineRunID))
		sb.WriteString("| Metric | Candidate (A) | Baseline (B) |\n")
		sb.WriteString("|--------|---------------|--------------|\n")
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f | %.4f |\n", c.SharpeA, c.SharpeB))
		sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% | %.2f%% |\n", c.ReturnA*100, c.ReturnB*100))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Mean return difference: %.6f, t = %.4f, p = %.4f\n\n", c.MeanReturnDiff, c.TStatistic, c.PValue))
		verdict := "not significant"
		if c.IsSignificant {
			verdict = "significant"
		}
		sb.WriteString(fmt.Sprintf("Winner: **%s** (%s at %.0f%% confidence)\n\n", c.Winner, verdict, c.ConfidenceLevel*100))
	} else {
		sb.WriteString("No baseline comparison.\n\n")
	}

	// Decision
	if r.Decision != nil {
		sb.WriteString(fmt.Sprintf("## Decision: %s\n\n", r.Decision.Decision))
		decision.WriteChecklist(&sb, r.Decision)
	}

	return sb.String()
}
