package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Params configures any of the built-in policies
type Params struct {
	UnitStake      decimal.Decimal
	MinProbability float64
	KellyFraction  float64
	MaxFraction    float64
	MinEdge        float64
}

// Names lists the built-in policies
var Names = []string{"top_place", "kelly_win", "wide_top_pair"}

// New builds a policy by name
func New(name string, p Params) (Policy, error) {
	var (
		policy Policy
		err    error
	)
	switch name {
	case "top_place":
		var tp *TopPlace
		if tp, err = NewTopPlace(p.UnitStake, p.MinProbability); err == nil {
			policy = tp
		}
	case "kelly_win":
		var kw *KellyWin
		if kw, err = NewKellyWin(p.KellyFraction, p.MaxFraction, p.MinEdge); err == nil {
			policy = kw
		}
	case "wide_top_pair":
		var wp *WideTopPair
		if wp, err = NewWideTopPair(p.UnitStake); err == nil {
			policy = wp
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	if err != nil {
		return nil, err
	}
	return policy, nil
}
