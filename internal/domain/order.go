package domain

// Side is the direction of an order.
type Side string

// Side constants.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// SideFor returns the side implied by a signed quantity.
func SideFor(signed float64) Side {
	if signed < 0 {
		return SideSell
	}
	return SideBuy
}

// Order is a simulated limit order. Pending until filled by crossing or cancelled at run end.
type Order struct {
	OrderID    string
	Symbol     string
	Side       Side
	Size       float64 // units, > 0
	LimitPrice float64
	Timestamp  int64 // submission time, unix ms

	Filled    bool
	FillPrice float64
	FillTime  int64
}

// Fill is one row of the trade log.
type Fill struct {
	FillID      string
	RunID       string
	OrderID     string
	Timestamp   int64 // unix ms
	Symbol      string
	Side        Side
	Size        float64 // units, > 0
	Price       float64
	Commission  float64
	Regime      Regime  // regime in force when the fill happened
	RealizedPnL float64 // PnL realized by the reducing part of this fill, before commission
	Closing     bool    // fill reduced or closed an existing position
	ForceClose  bool    // end-of-run liquidation
}

// NetPnL is realized PnL after this fill's commission.
func (f *Fill) NetPnL() float64 {
	return f.RealizedPnL - f.Commission
}

// IsWin reports whether this is a closing fill with positive net realized PnL.
func (f *Fill) IsWin() bool {
	return f.Closing && f.NetPnL() > 0
}
