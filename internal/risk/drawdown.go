package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// thresholdTolerance absorbs float error at the threshold boundaries.
const thresholdTolerance = 1e-10

// RiskLevel is the drawdown monitor state.
type RiskLevel int

// Risk levels. Safe is sticky until AcknowledgeAndReset.
const (
	LevelNormal RiskLevel = iota
	LevelReduced
	LevelSafe
)

// String returns a lower-case name.
func (l RiskLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelReduced:
		return "reduced"
	case LevelSafe:
		return "safe"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Multiplier returns the position size multiplier for the level.
func (l RiskLevel) Multiplier() float64 {
	switch l {
	case LevelNormal:
		return 1.0
	case LevelReduced:
		return 0.5
	default:
		return 0.0
	}
}

// DrawdownConfig holds drawdown thresholds as fractions of peak capital.
type DrawdownConfig struct {
	ReductionThreshold float64
	SafeModeThreshold  float64
}

// DefaultDrawdownConfig returns 15% reduction and 25% safe mode.
func DefaultDrawdownConfig() DrawdownConfig {
	return DrawdownConfig{
		ReductionThreshold: 0.15,
		SafeModeThreshold:  0.25,
	}
}

// DrawdownStatus is a point-in-time snapshot of the monitor.
type DrawdownStatus struct {
	InitialCapital      float64
	PeakCapital         float64
	CurrentCapital      float64
	CurrentDrawdown     float64
	MaxDrawdown         float64
	DrawdownFromInitial float64
	Level               RiskLevel
	Multiplier          float64
	ReducedSince        int64 // unix ms, 0 when not reduced
	SafeSince           int64 // unix ms, 0 when not in safe mode
}

// DrawdownMonitor tracks peak and current capital and derives a risk level.
// It is safe for concurrent use.
type DrawdownMonitor struct {
	mu sync.RWMutex

	cfg    DrawdownConfig
	now    func() time.Time
	logger zerolog.Logger

	initial         float64
	peak            float64
	current         float64
	currentDrawdown float64
	maxDrawdown     float64
	level           RiskLevel
	reducedSince    int64
	safeSince       int64
}

// DrawdownOption configures a DrawdownMonitor.
type DrawdownOption func(*DrawdownMonitor)

// WithDrawdownClock overrides the clock used to stamp level transitions.
func WithDrawdownClock(now func() time.Time) DrawdownOption {
	return func(m *DrawdownMonitor) { m.now = now }
}

// WithDrawdownLogger sets the logger.
func WithDrawdownLogger(logger zerolog.Logger) DrawdownOption {
	return func(m *DrawdownMonitor) { m.logger = logger }
}

// NewDrawdownMonitor creates a monitor starting at initialCapital in Normal.
func NewDrawdownMonitor(initialCapital float64, cfg DrawdownConfig, opts ...DrawdownOption) *DrawdownMonitor {
	m := &DrawdownMonitor{
		cfg:     cfg,
		now:     time.Now,
		logger:  zerolog.Nop(),
		initial: initialCapital,
		peak:    initialCapital,
		current: initialCapital,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update records current capital and advances the state machine.
func (m *DrawdownMonitor) Update(capital float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = capital

	if capital >= m.peak {
		m.peak = capital
		if m.level == LevelReduced {
			m.level = LevelNormal
			m.reducedSince = 0
			m.logger.Info().Float64("capital", capital).Msg("recovered to new peak, risk reduction cleared")
		}
	}

	dd := 0.0
	if m.peak > 0 {
		dd = (m.peak - capital) / m.peak
	}
	m.currentDrawdown = clamp01(dd)
	if m.currentDrawdown > m.maxDrawdown {
		m.maxDrawdown = m.currentDrawdown
	}

	switch {
	case m.currentDrawdown >= m.cfg.SafeModeThreshold-thresholdTolerance:
		if m.level != LevelSafe {
			m.level = LevelSafe
			m.safeSince = m.now().UnixMilli()
			m.logger.Error().
				Float64("drawdown", m.currentDrawdown).
				Float64("threshold", m.cfg.SafeModeThreshold).
				Msg("safe mode activated, trading halted")
		}
	case m.currentDrawdown >= m.cfg.ReductionThreshold-thresholdTolerance && m.level != LevelSafe:
		if m.level != LevelReduced {
			m.level = LevelReduced
			m.reducedSince = m.now().UnixMilli()
			m.logger.Warn().
				Float64("drawdown", m.currentDrawdown).
				Float64("threshold", m.cfg.ReductionThreshold).
				Msg("risk reduction triggered")
		}
	}
}

// AcknowledgeAndReset leaves safe mode. It is the only exit from Safe and
// must name the operator who reviewed the halt.
func (m *DrawdownMonitor) AcknowledgeAndReset(operator string) error {
	if operator == "" {
		return ErrOperatorRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.level != LevelSafe {
		return ErrNotInSafeMode
	}
	m.level = LevelNormal
	m.safeSince = 0
	m.reducedSince = 0
	m.logger.Warn().
		Str("operator", operator).
		Float64("drawdown", m.currentDrawdown).
		Msg("safe mode reset by operator")
	return nil
}

// Level returns the current risk level.
func (m *DrawdownMonitor) Level() RiskLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Multiplier returns 1.0, 0.5 or 0.0 for Normal, Reduced and Safe.
func (m *DrawdownMonitor) Multiplier() float64 {
	return m.Level().Multiplier()
}

// IsSafeMode reports whether trading is halted.
func (m *DrawdownMonitor) IsSafeMode() bool {
	return m.Level() == LevelSafe
}

// IsReductionActive reports whether sizes are being halved.
func (m *DrawdownMonitor) IsReductionActive() bool {
	return m.Level() == LevelReduced
}

// CurrentDrawdown returns the drawdown from peak at the last update.
func (m *DrawdownMonitor) CurrentDrawdown() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentDrawdown
}

// MaxDrawdown returns the largest drawdown seen.
func (m *DrawdownMonitor) MaxDrawdown() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxDrawdown
}

// DrawdownFromInitial returns (initial - current) / initial, or 0 without capital.
func (m *DrawdownMonitor) DrawdownFromInitial() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drawdownFromInitial()
}

func (m *DrawdownMonitor) drawdownFromInitial() float64 {
	if m.initial <= 0 {
		return 0
	}
	return (m.initial - m.current) / m.initial
}

// Status returns a snapshot of the monitor.
func (m *DrawdownMonitor) Status() DrawdownStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return DrawdownStatus{
		InitialCapital:      m.initial,
		PeakCapital:         m.peak,
		CurrentCapital:      m.current,
		CurrentDrawdown:     m.currentDrawdown,
		MaxDrawdown:         m.maxDrawdown,
		DrawdownFromInitial: m.drawdownFromInitial(),
		Level:               m.level,
		Multiplier:          m.level.Multiplier(),
		ReducedSince:        m.reducedSince,
		SafeSince:           m.safeSince,
	}
}

func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
