package backtest

import "regime-trader/internal/domain"

// bpsDivisor converts basis points to a fraction.
const bpsDivisor = 10000.0

// FillPrice reports whether o crosses tick and at what price. A BUY fills
// when ask <= limit at ask*(1+slip); a SELL fills when bid >= limit at
// bid*(1-slip).
func FillPrice(o *domain.Order, tick domain.MarketDataPoint, slippageBps float64) (float64, bool) {
	slip := slippageBps / bpsDivisor
	if o.Side == domain.SideBuy {
		if tick.Ask <= o.LimitPrice {
			return tick.Ask * (1 + slip), true
		}
		return 0, false
	}
	if tick.Bid >= o.LimitPrice {
		return tick.Bid * (1 - slip), true
	}
	return 0, false
}

// Commission is |size| * price * bps / 10000.
func Commission(size, price, commissionBps float64) float64 {
	return absf(size) * price * commissionBps / bpsDivisor
}
