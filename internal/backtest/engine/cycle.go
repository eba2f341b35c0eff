package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// runState is the per-run accumulator threaded through every cycle.
type runState struct {
	portfolio Portfolio
	counters  Counters
	ledger    []Action
}

func newRunState(capital decimal.Decimal) *runState {
	return &runState{
		portfolio: Portfolio{Cash: capital},
		ledger:    []Action{},
	}
}

// cycleInput is everything one weekly cycle needs. Premium is per share
// for the leg the current state sells.
type cycleInput struct {
	Monday  time.Time
	Friday  time.Time
	Open    decimal.Decimal
	Close   decimal.Decimal
	Strike  decimal.Decimal
	Premium decimal.Decimal
}

// stepCycle applies one expiry cycle to st and returns the actions it
// appended. It performs no I/O.
func stepCycle(st *runState, in cycleInput) []Action {
	first := len(st.ledger)
	p := &st.portfolio

	strike := in.Strike
	p.CurrentStrike = &strike

	premiumTotal := in.Premium.Mul(contractSize)
	p.Cash = p.Cash.Add(premiumTotal)
	st.counters.PremiumCollected = st.counters.PremiumCollected.Add(premiumTotal)

	switch p.State() {
	case SeekingPut:
		st.counters.PutsSold++
		st.record(in.Monday, SellPut, in.Open, strike, premiumTotal)

		if in.Close.LessThan(strike) {
			cost := strike.Mul(contractSize)
			if p.Cash.GreaterThanOrEqual(cost) {
				p.Cash = p.Cash.Sub(cost)
				p.SharesHeld = ContractSize
				st.counters.Assignments++
				st.record(in.Friday, Assigned, in.Close, strike, decimal.Zero)
			} else {
				st.counters.SkippedAssignments++
				st.record(in.Friday, AssignedSkipped, in.Close, strike, decimal.Zero)
			}
		}

	case HoldingCovered:
		st.counters.CallsSold++
		st.record(in.Monday, SellCall, in.Open, strike, premiumTotal)

		if in.Close.GreaterThan(strike) {
			p.Cash = p.Cash.Add(strike.Mul(contractSize))
			p.SharesHeld = 0
			p.CurrentStrike = nil
			st.counters.CallAways++
			st.record(in.Friday, CalledAway, in.Close, strike, decimal.Zero)
		}
	}

	return st.ledger[first:]
}

func (st *runState) record(date time.Time, kind ActionKind, price, strike, premium decimal.Decimal) {
	st.ledger = append(st.ledger, Action{
		Date:           date,
		Kind:           kind,
		StockPrice:     price,
		Strike:         strike,
		Premium:        premium,
		SharesHeld:     st.portfolio.SharesHeld,
		Cash:           st.portfolio.Cash,
		PortfolioValue: st.portfolio.value(price),
	})
}

// summarize derives the end-of-run summary from the final state and the
// last available close.
func (st *runState) summarize(capital, lastClose decimal.Decimal) Summary {
	ending := st.portfolio.value(lastClose)
	return Summary{
		StartingCapital:    capital,
		EndingBalance:      ending,
		TotalReturnPct:     ending.Sub(capital).Div(capital).Mul(decimal.NewFromInt(100)),
		PutsSold:           st.counters.PutsSold,
		CallsSold:          st.counters.CallsSold,
		Assignments:        st.counters.Assignments,
		CallAways:          st.counters.CallAways,
		SkippedAssignments: st.counters.SkippedAssignments,
		PremiumCollected:   st.counters.PremiumCollected,
		SharesHeldAtEnd:    st.portfolio.SharesHeld,
		CashAtEnd:          st.portfolio.Cash,
		LastClose:          lastClose,
	}
}
