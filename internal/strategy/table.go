package strategy

import (
	"time"

	"regime-trader/internal/domain"
)

// defaultTable returns the built-in per-regime parameters, indexed by Regime.
// Uncertain is the most conservative entry.
func defaultTable() [domain.NumRegimes]Entry {
	var t [domain.NumRegimes]Entry

	t[domain.RegimeTrending] = Entry{
		Parameters: Parameters{
			PositionMultiplier: 1.0,
			StopLossPct:        0.02,
			TakeProfitPct:      0.05,
			SignalThreshold:    0.3,
			MaxHoldingPeriod:   time.Hour,
		},
		Weights: map[string]float64{
			"temp_momentum":       0.5,
			"temp_trend":          0.6,
			"flights_trend":       0.7,
			"flight_volume_delta": 0.6,
			"movements_delta":     0.5,
			"precipitation":       -0.3,
			"avg_delay":           -0.2,
		},
	}

	// Fade momentum and volume spikes.
	t[domain.RegimeMeanReverting] = Entry{
		Parameters: Parameters{
			PositionMultiplier: 0.8,
			StopLossPct:        0.015,
			TakeProfitPct:      0.03,
			SignalThreshold:    0.4,
			MaxHoldingPeriod:   30 * time.Minute,
		},
		Weights: map[string]float64{
			"temp_momentum":         -0.4,
			"pressure_delta":        0.5,
			"aqi_delta":             0.4,
			"weather_flight_stress": 0.6,
			"precipitation":         0.4,
			"flight_volume_delta":   -0.3,
		},
	}

	// Only stable, observable indicators.
	t[domain.RegimeHighVolatility] = Entry{
		Parameters: Parameters{
			PositionMultiplier: 0.5,
			StopLossPct:        0.04,
			TakeProfitPct:      0.08,
			SignalThreshold:    0.5,
			MaxHoldingPeriod:   15 * time.Minute,
		},
		Weights: map[string]float64{
			"precipitation":         0.6,
			"avg_delay":             0.5,
			"weather_flight_stress": 0.7,
			"wind_speed":            -0.4,
			"aqi_delta":             0.3,
		},
	}

	t[domain.RegimeLowVolatility] = Entry{
		Parameters: Parameters{
			PositionMultiplier: 1.2,
			StopLossPct:        0.01,
			TakeProfitPct:      0.025,
			SignalThreshold:    0.25,
			MaxHoldingPeriod:   2 * time.Hour,
		},
		Weights: map[string]float64{
			"temp_momentum":       0.4,
			"flight_volume_delta": 0.5,
			"movements_delta":     0.4,
			"temp_trend":          0.4,
			"flights_trend":       0.5,
			"pressure_delta":      -0.3,
			"aqi_delta":           -0.3,
		},
	}

	t[domain.RegimeUncertain] = Entry{
		Parameters: Parameters{
			PositionMultiplier: 0.3,
			StopLossPct:        0.02,
			TakeProfitPct:      0.04,
			SignalThreshold:    0.6,
			MaxHoldingPeriod:   10 * time.Minute,
		},
		Weights: map[string]float64{
			"precipitation":         0.5,
			"flight_volume_delta":   0.4,
			"movements_delta":       0.4,
			"weather_flight_stress": 0.5,
		},
	}

	return t
}
