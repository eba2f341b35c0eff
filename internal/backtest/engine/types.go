package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ContractSize is the number of shares one option contract covers.
const ContractSize = 100

var contractSize = decimal.NewFromInt(ContractSize)

// SimulationConfig is the immutable input of one run.
type SimulationConfig struct {
	Ticker          string          `json:"ticker"`           // e.g. "AAPL"
	StrikePct       float64         `json:"strike_pct"`       // strike as a fraction of Monday open, in (0,1]
	Start           time.Time       `json:"start"`            // first calendar day of the run
	End             time.Time       `json:"end"`              // last calendar day of the run
	StartingCapital decimal.Decimal `json:"starting_capital"` // initial cash
}

// State is the wheel phase derived from the shares held.
type State int

const (
	SeekingPut     State = iota // no shares, selling cash-secured puts
	HoldingCovered              // one lot held, selling covered calls
)

func (s State) String() string {
	if s == HoldingCovered {
		return "holding_covered"
	}
	return "seeking_put"
}

// Portfolio is the mutable position during a run.
type Portfolio struct {
	Cash          decimal.Decimal  // running cash balance
	SharesHeld    int              // 0 or ContractSize
	CurrentStrike *decimal.Decimal // strike of the open leg, nil when none
}

// State reports the wheel phase implied by SharesHeld.
func (p Portfolio) State() State {
	if p.SharesHeld == ContractSize {
		return HoldingCovered
	}
	return SeekingPut
}

// value marks the position to price.
func (p Portfolio) value(price decimal.Decimal) decimal.Decimal {
	return p.Cash.Add(price.Mul(decimal.NewFromInt(int64(p.SharesHeld))))
}

// Counters accumulate run statistics.
type Counters struct {
	PutsSold           int
	CallsSold          int
	Assignments        int
	CallAways          int
	SkippedAssignments int
	PremiumCollected   decimal.Decimal
}

// ActionKind tags a ledger entry.
type ActionKind int

const (
	SellPut ActionKind = iota
	SellCall
	Assigned
	AssignedSkipped
	CalledAway
)

var actionKindNames = map[ActionKind]string{
	SellPut:         "Sell Put",
	SellCall:        "Sell Call",
	Assigned:        "Assigned",
	AssignedSkipped: "Assigned (insufficient cash - skipped)",
	CalledAway:      "Called Away",
}

func (k ActionKind) String() string {
	if s, ok := actionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// MetricLabel is a low-cardinality, space-free form for metrics labels.
func (k ActionKind) MetricLabel() string {
	switch k {
	case SellPut:
		return "sell_put"
	case SellCall:
		return "sell_call"
	case Assigned:
		return "assigned"
	case AssignedSkipped:
		return "assigned_skipped"
	case CalledAway:
		return "called_away"
	}
	return "unknown"
}

func (k ActionKind) MarshalText() ([]byte, error) {
	s, ok := actionKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown action kind %d", int(k))
	}
	return []byte(s), nil
}

func (k *ActionKind) UnmarshalText(b []byte) error {
	for kind, name := range actionKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown action kind %q", string(b))
}

// Action is one immutable ledger entry. Premium is the contract total;
// it is zero for assignment and call-away events.
type Action struct {
	Date           time.Time       `json:"date"`
	Kind           ActionKind      `json:"action"`
	StockPrice     decimal.Decimal `json:"stock_price"`
	Strike         decimal.Decimal `json:"strike"`
	Premium        decimal.Decimal `json:"premium"`
	SharesHeld     int             `json:"shares_held"`
	Cash           decimal.Decimal `json:"cash_balance"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// Summary is derived once at the end of a run. When Notice is set the run
// had no expiry cycles and the numeric fields carry no meaning.
type Summary struct {
	Notice             string          `json:"notice,omitempty"`
	StartingCapital    decimal.Decimal `json:"starting_capital"`
	EndingBalance      decimal.Decimal `json:"ending_balance"`
	TotalReturnPct     decimal.Decimal `json:"total_return_pct"`
	PutsSold           int             `json:"puts_sold"`
	CallsSold          int             `json:"calls_sold"`
	Assignments        int             `json:"assignments"`
	CallAways          int             `json:"call_aways"`
	SkippedAssignments int             `json:"skipped_assignments"`
	PremiumCollected   decimal.Decimal `json:"premium_collected"`
	SharesHeldAtEnd    int             `json:"shares_held_at_end"`
	CashAtEnd          decimal.Decimal `json:"cash_at_end"`
	LastClose          decimal.Decimal `json:"last_close"`
}

// HasMetrics reports whether the numeric fields are meaningful.
func (s Summary) HasMetrics() bool {
	return s.Notice == ""
}

// Result is the output of Engine.Run.
type Result struct {
	Ledger  []Action `json:"ledger"`
	Summary Summary  `json:"summary"`
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}
