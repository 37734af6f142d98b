package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"regime-trader/internal/domain"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// writeCSV renders rows with encoding/csv. Writing into a strings.Builder
// cannot fail, so the writer error is not surfaced.
func writeCSV(header []string, rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	return sb.String()
}

// RenderTradesCSV renders the trade log of a run, one fill per row.
func RenderTradesCSV(r *domain.BacktestResult) string {
	header := []string{
		"run_id", "fill_id", "timestamp", "symbol", "side", "size", "price",
		"commission", "regime", "realized_pnl", "net_pnl", "closing", "force_close",
	}
	rows := make([][]string, 0, len(r.Trades))
	for i := range r.Trades {
		f := &r.Trades[i]
		rows = append(rows, []string{
			r.RunID,
			f.FillID,
			strconv.FormatInt(f.Timestamp, 10),
			f.Symbol,
			string(f.Side),
			formatFloat(f.Size),
			formatFloat(f.Price),
			formatFloat(f.Commission),
			f.Regime.String(),
			formatFloat(f.RealizedPnL),
			formatFloat(f.NetPnL()),
			strconv.FormatBool(f.Closing),
			strconv.FormatBool(f.ForceClose),
		})
	}
	return writeCSV(header, rows)
}

// RenderEquityCSV renders the equity curve with the running drawdown from
// the peak so far.
func RenderEquityCSV(r *domain.BacktestResult) string {
	header := []string{"run_id", "timestamp", "equity", "drawdown"}
	rows := make([][]string, 0, len(r.EquityCurve))
	peak := 0.0
	for i, p := range r.EquityCurve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p.Equity) / peak
		}
		rows = append(rows, []string{
			r.RunID,
			strconv.FormatInt(p.Timestamp, 10),
			formatFloat(p.Equity),
			formatFloat(dd),
		})
	}
	return writeCSV(header, rows)
}

// RenderRunsCSV renders run summaries, one per row, in the order given.
func RenderRunsCSV(runs []*domain.RunSummary) string {
	header := []string{
		"run_id", "strategy_id", "scenario_id", "initial_capital", "final_equity",
		"total_pnl", "total_return", "sharpe_ratio", "max_drawdown", "win_rate",
		"total_trades", "closing_trades", "winning_trades", "max_consecutive_losses",
		"safe_mode_entered",
	}
	rows := make([][]string, 0, len(runs))
	for _, s := range runs {
		rows = append(rows, []string{
			s.RunID,
			s.StrategyID,
			s.ScenarioID,
			formatFloat(s.InitialCapital),
			formatFloat(s.FinalEquity),
			formatFloat(s.TotalPnL),
			formatFloat(s.TotalReturn),
			formatFloat(s.SharpeRatio),
			formatFloat(s.MaxDrawdown),
			formatFloat(s.WinRate),
			strconv.Itoa(s.TotalTrades),
			strconv.Itoa(s.ClosingTrades),
			strconv.Itoa(s.WinningTrades),
			strconv.Itoa(s.MaxConsecutiveLosses),
			strconv.FormatBool(s.SafeModeEntered),
		})
	}
	return writeCSV(header, rows)
}
