package risk

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestMonitor() (*DrawdownMonitor, *time.Time) {
	now := time.UnixMilli(1_700_000_000_000)
	m := NewDrawdownMonitor(100000, DefaultDrawdownConfig(), WithDrawdownClock(func() time.Time { return now }))
	return m, &now
}

func TestDrawdown_ConcreteThresholds(t *testing.T) {
	m, _ := newTestMonitor()

	m.Update(84000)
	if math.Abs(m.CurrentDrawdown()-0.16) > 1e-9 {
		t.Errorf("expected drawdown 0.16, got %v", m.CurrentDrawdown())
	}
	if m.Multiplier() != 0.5 {
		t.Errorf("expected multiplier 0.5, got %v", m.Multiplier())
	}
	if !m.IsReductionActive() || m.IsSafeMode() {
		t.Errorf("expected reduction active and not safe, got level %s", m.Level())
	}

	m.Update(74000)
	if math.Abs(m.CurrentDrawdown()-0.26) > 1e-9 {
		t.Errorf("expected drawdown 0.26, got %v", m.CurrentDrawdown())
	}
	if m.Multiplier() != 0 {
		t.Errorf("expected multiplier 0, got %v", m.Multiplier())
	}
	if !m.IsSafeMode() {
		t.Errorf("expected safe mode")
	}
}

func TestDrawdown_RecoveryClearsReduction(t *testing.T) {
	m, _ := newTestMonitor()

	m.Update(84000)
	m.Update(101000)

	if m.IsReductionActive() {
		t.Errorf("reduction should clear on new peak")
	}
	if m.Multiplier() != 1.0 {
		t.Errorf("expected multiplier 1.0, got %v", m.Multiplier())
	}
	if m.CurrentDrawdown() != 0 {
		t.Errorf("expected zero drawdown at peak, got %v", m.CurrentDrawdown())
	}
	if math.Abs(m.MaxDrawdown()-0.16) > 1e-9 {
		t.Errorf("max drawdown must remember 0.16, got %v", m.MaxDrawdown())
	}
}

func TestDrawdown_SafeModeIsSticky(t *testing.T) {
	m, _ := newTestMonitor()

	m.Update(74000)
	m.Update(150000)

	if !m.IsSafeMode() {
		t.Fatalf("safe mode must not clear on a new peak")
	}
	if m.Multiplier() != 0 {
		t.Errorf("expected multiplier 0 in safe mode, got %v", m.Multiplier())
	}
}

func TestDrawdown_ExactThresholdBoundary(t *testing.T) {
	m, _ := newTestMonitor()

	m.Update(85000) // exactly 15%
	if m.Level() != LevelReduced {
		t.Errorf("expected reduced at exactly 15%%, got %s", m.Level())
	}
	m.Update(75000) // exactly 25%
	if m.Level() != LevelSafe {
		t.Errorf("expected safe at exactly 25%%, got %s", m.Level())
	}
}

func TestDrawdown_AcknowledgeAndReset(t *testing.T) {
	m, now := newTestMonitor()

	if err := m.AcknowledgeAndReset("ops"); !errors.Is(err, ErrNotInSafeMode) {
		t.Errorf("expected ErrNotInSafeMode, got %v", err)
	}

	m.Update(70000)
	st := m.Status()
	if st.SafeSince != now.UnixMilli() {
		t.Errorf("expected SafeSince %d, got %d", now.UnixMilli(), st.SafeSince)
	}

	if err := m.AcknowledgeAndReset(""); !errors.Is(err, ErrOperatorRequired) {
		t.Errorf("expected ErrOperatorRequired, got %v", err)
	}
	if !m.IsSafeMode() {
		t.Fatalf("failed reset must not leave safe mode")
	}

	if err := m.AcknowledgeAndReset("ops"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if m.Level() != LevelNormal || m.Status().SafeSince != 0 {
		t.Errorf("expected normal with cleared timestamp, got %+v", m.Status())
	}

	// The next update re-evaluates from the unchanged peak.
	m.Update(70000)
	if !m.IsSafeMode() {
		t.Errorf("still 30%% below peak, expected safe mode again")
	}
}

func TestDrawdown_StatusAndBounds(t *testing.T) {
	m, _ := newTestMonitor()

	m.Update(-5000)
	st := m.Status()
	if st.CurrentDrawdown != 1 {
		t.Errorf("drawdown must be clamped to 1, got %v", st.CurrentDrawdown)
	}
	if math.Abs(st.DrawdownFromInitial-1.05) > 1e-9 {
		t.Errorf("expected drawdown from initial 1.05, got %v", st.DrawdownFromInitial)
	}
	if st.Level != LevelSafe || st.Multiplier != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRiskLevel_String(t *testing.T) {
	if LevelNormal.String() != "normal" || LevelReduced.String() != "reduced" || LevelSafe.String() != "safe" {
		t.Errorf("unexpected level names")
	}
}
