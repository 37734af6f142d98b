// Package regime classifies a trailing return series into a market regime.
package regime

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"regime-trader/internal/domain"
)

// State is the outcome of one classification.
type State struct {
	Regime     domain.Regime
	Confidence float64
	Metrics    Metrics
	Sufficient bool // false when the window was shorter than TrendSlowWindow
}

// Classify is the pure classification underlying Detector.Detect.
func Classify(cfg Config, returns []float64) State {
	if len(returns) < cfg.TrendSlowWindow || len(returns) == 0 {
		return State{Regime: domain.RegimeUncertain}
	}

	m := ComputeMetrics(cfg, returns)

	// Candidates are evaluated in a fixed order; ties keep the earlier one.
	best := domain.RegimeUncertain
	bestScore := 0.0
	consider := func(r domain.Regime, score float64) {
		if score > bestScore {
			best, bestScore = r, score
		}
	}

	if m.Volatility > HighVolThreshold {
		consider(domain.RegimeHighVolatility, math.Min((m.Volatility-HighVolThreshold)/HighVolThreshold, 1))
	}
	if m.Volatility < LowVolThreshold {
		consider(domain.RegimeLowVolatility, 1-m.Volatility/LowVolThreshold)
	}
	if math.Abs(m.TrendStrength) > TrendThreshold {
		consider(domain.RegimeTrending, math.Abs(m.TrendStrength))
	}
	if m.MeanReversion > MeanReversionThreshold {
		consider(domain.RegimeMeanReverting, m.MeanReversion)
	}

	st := State{Regime: domain.RegimeUncertain, Confidence: bestScore, Metrics: m, Sufficient: true}
	if best != domain.RegimeUncertain && bestScore >= cfg.ConfidenceThreshold {
		st.Regime = best
	}
	return st
}

// Detector keeps the last classification so callers can query it without
// recomputing. A Detector is single-owner state: it is not safe for
// concurrent use, and each backtest or trader owns its own instance.
type Detector struct {
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	state        State
	lastDetected time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the clock used for TimeSinceLastDetection.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector creates a detector starting in the uncertain regime.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:    cfg,
		now:    time.Now,
		logger: zerolog.Nop(),
		state:  State{Regime: domain.RegimeUncertain},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect classifies returns and stores the result.
func (d *Detector) Detect(returns []float64) (domain.Regime, float64) {
	prev := d.state.Regime
	st := Classify(d.cfg, returns)
	d.state = st
	d.lastDetected = d.now()

	if !st.Sufficient {
		d.logger.Debug().
			Int("samples", len(returns)).
			Int("required", d.cfg.TrendSlowWindow).
			Msg("insufficient returns for regime detection")
	} else if st.Regime != prev {
		d.logger.Info().
			Stringer("from", prev).
			Stringer("to", st.Regime).
			Float64("confidence", st.Confidence).
			Float64("volatility", st.Metrics.Volatility).
			Float64("trend", st.Metrics.TrendStrength).
			Float64("mean_reversion", st.Metrics.MeanReversion).
			Msg("regime changed")
	}

	return st.Regime, st.Confidence
}

// Metrics computes the raw indicators for returns without touching state.
// It returns zero metrics when the window is too short.
func (d *Detector) Metrics(returns []float64) Metrics {
	if len(returns) < d.cfg.TrendSlowWindow || len(returns) == 0 {
		return Metrics{}
	}
	return ComputeMetrics(d.cfg, returns)
}

// CurrentRegime returns the regime from the last Detect call.
func (d *Detector) CurrentRegime() domain.Regime { return d.state.Regime }

// Confidence returns the confidence from the last Detect call.
func (d *Detector) Confidence() float64 { return d.state.Confidence }

// State returns the full last classification.
func (d *Detector) State() State { return d.state }

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// TimeSinceLastDetection reports the elapsed time since Detect last ran.
// It returns the maximum duration if Detect has never been called.
func (d *Detector) TimeSinceLastDetection() time.Duration {
	if d.lastDetected.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return d.now().Sub(d.lastDetected)
}
