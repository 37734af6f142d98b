package regime

// Config holds detector windows and thresholds.
type Config struct {
	VolatilityWindow    int     // returns used for volatility and autocorrelation
	TrendFastWindow     int     // fast mean of the price proxy
	TrendSlowWindow     int     // slow mean of the price proxy; also the minimum sample count
	AutocorrLag         int     // lag for the mean-reversion autocorrelation
	ConfidenceThreshold float64 // minimum score to report a non-uncertain regime
}

// DefaultConfig returns the standard detector settings.
func DefaultConfig() Config {
	return Config{
		VolatilityWindow:    20,
		TrendFastWindow:     10,
		TrendSlowWindow:     30,
		AutocorrLag:         5,
		ConfidenceThreshold: 0.7,
	}
}

// Classification thresholds.
const (
	HighVolThreshold       = 0.3 // annualised
	LowVolThreshold        = 0.1 // annualised
	TrendThreshold         = 0.3
	MeanReversionThreshold = 0.3

	// TradingDaysPerYear annualises daily statistics.
	TradingDaysPerYear = 252
)
