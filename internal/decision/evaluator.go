package decision

import (
	"fmt"

	"regime-trader/internal/domain"
)

// notApplicable is the Actual text of a skipped criterion.
const notApplicable = "n/a"

// Evaluator evaluates decision criteria.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Thresholds returns the limits the evaluator applies.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate produces DecisionResult from DecisionInput.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) Evaluate(input DecisionInput) (*DecisionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	goCriteria := e.evaluateGOCriteria(input)
	nogoChecks := e.evaluateNOGOTriggers(input)

	decision := DecisionGO
	for _, c := range goCriteria {
		if !c.Pass {
			decision = DecisionNOGO
			break
		}
	}
	for _, c := range nogoChecks {
		if !c.Pass { // Pass=false means triggered
			decision = DecisionNOGO
			break
		}
	}

	return &DecisionResult{
		RunID:      input.RunID,
		StrategyID: input.StrategyID,
		ScenarioID: input.ScenarioID,
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}, nil
}

// evaluateGOCriteria evaluates the 5 GO criteria.
func (e *Evaluator) evaluateGOCriteria(input DecisionInput) []CriterionResult {
	th := e.thresholds
	criteria := make([]CriterionResult, 5)

	criteria[0] = CriterionResult{
		Name:      "Sharpe ratio",
		Threshold: fmt.Sprintf(">= %.2f", th.MinSharpe),
		Actual:    fmt.Sprintf("%.4f", input.SharpeRatio),
		Pass:      input.SharpeRatio >= th.MinSharpe,
	}

	criteria[1] = CriterionResult{
		Name:      "Max drawdown",
		Threshold: fmt.Sprintf("<= %.2f%%", th.MaxDrawdown*100),
		Actual:    fmt.Sprintf("%.2f%%", input.MaxDrawdown*100),
		Pass:      input.MaxDrawdown <= th.MaxDrawdown,
	}

	criteria[2] = CriterionResult{
		Name:      "Trade count",
		Threshold: fmt.Sprintf(">= %d", th.MinTrades),
		Actual:    fmt.Sprintf("%d", input.TotalTrades),
		Pass:      input.TotalTrades >= th.MinTrades,
	}

	criteria[3] = CriterionResult{
		Name:      "Win rate",
		Threshold: fmt.Sprintf(">= %.2f%%", th.MinWinRate*100),
		Actual:    fmt.Sprintf("%.2f%%", input.WinRate*100),
		Pass:      input.WinRate >= th.MinWinRate,
	}

	criteria[4] = beatsBaseline(input)

	return criteria
}

// beatsBaseline requires a significant win over the baseline. Without a
// baseline the check is skipped.
func beatsBaseline(input DecisionInput) CriterionResult {
	c := CriterionResult{
		Name:      "Beats baseline",
		Threshold: "significant, winner A",
	}
	cmp := input.Comparison
	if cmp == nil {
		c.Actual = notApplicable
		c.Pass = true
		c.Skipped = true
		return c
	}
	c.Threshold = fmt.Sprintf("p < %.2f, winner A", 1-cmp.ConfidenceLevel)
	c.Actual = fmt.Sprintf("p=%.4f, winner %s", cmp.PValue, cmp.Winner)
	c.Pass = cmp.IsSignificant && cmp.Winner == domain.WinnerA
	return c
}

// evaluateNOGOTriggers evaluates the 3 NO-GO triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateNOGOTriggers(input DecisionInput) []CriterionResult {
	checks := make([]CriterionResult, 3)

	checks[0] = CriterionResult{
		Name:      "Non-positive PnL",
		Threshold: "<= 0",
		Actual:    fmt.Sprintf("%.2f", input.TotalPnL),
		Pass:      input.TotalPnL > 0,
	}

	checks[1] = CriterionResult{
		Name:      "Safe mode entered",
		Threshold: "true",
		Actual:    fmt.Sprintf("%t", input.SafeModeEntered),
		Pass:      !input.SafeModeEntered,
	}

	checks[2] = CriterionResult{
		Name:      "No trades",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", input.TotalTrades),
		Pass:      input.TotalTrades > 0,
	}

	return checks
}
