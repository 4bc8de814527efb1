package models

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// BetType represents a pari-mutuel pool
type BetType string

const (
	BetTypeWin      BetType = "win"
	BetTypePlace    BetType = "place"
	BetTypeQuinella BetType = "quinella"
	BetTypeExacta   BetType = "exacta"
	BetTypeWide     BetType = "wide"
	BetTypeTrifecta BetType = "trifecta"
	BetTypeTrio     BetType = "trio"
)

// AllBetTypes lists every supported pool
var AllBetTypes = []BetType{
	BetTypeWin, BetTypePlace, BetTypeQuinella, BetTypeExacta, BetTypeWide, BetTypeTrifecta, BetTypeTrio,
}

// PayoutUnit is the stake the published payout amounts refer to
var PayoutUnit = decimal.NewFromInt(100)

// Arity returns the number of horses in one combination of the pool
func (b BetType) Arity() int {
	switch b {
	case BetTypeWin, BetTypePlace:
		return 1
	case BetTypeQuinella, BetTypeExacta, BetTypeWide:
		return 2
	case BetTypeTrifecta, BetTypeTrio:
		return 3
	}
	return 0
}

// Ordered reports whether finishing order matters for the pool
func (b BetType) Ordered() bool {
	return b == BetTypeExacta || b == BetTypeTrifecta
}

// Valid reports whether the bet type is known
func (b BetType) Valid() bool {
	return b.Arity() > 0
}

// Combination is a selection of horse numbers
type Combination []int

// Key returns a canonical string for matching under the pool's ordering rule
func (c Combination) Key(betType BetType) string {
	nums := append([]int(nil), c...)
	if !betType.Ordered() {
		sort.Ints(nums)
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

// Equal compares two combinations under the pool's ordering rule
func (c Combination) Equal(other Combination, betType BetType) bool {
	if len(c) != len(other) {
		return false
	}
	return c.Key(betType) == other.Key(betType)
}

// Payout holds the winning combinations and amounts for one pool as ingested.
// Lengths may disagree when the upstream parser was ambiguous.
type Payout struct {
	Combinations []Combination     `json:"combinations"`
	Amounts      []decimal.Decimal `json:"amounts"`
}

// PayoutRecord holds every pool's payout for a race
type PayoutRecord struct {
	RaceID string             `json:"race_id"`
	Pools  map[BetType]Payout `json:"pools"`
}

// Pool returns the payout for a bet type
func (p *PayoutRecord) Pool(betType BetType) (Payout, bool) {
	if p == nil || p.Pools == nil {
		return Payout{}, false
	}
	payout, ok := p.Pools[betType]
	return payout, ok
}
