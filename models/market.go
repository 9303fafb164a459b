package models

import (
	"fmt"
	"time"
)

// Symbol is a spot market spelled BASE/QUOTE. Name is the exchange's own
// identifier for the pair (for Bybit the concatenation, e.g. BTCUSDT).
type Symbol struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Name  string `json:"name"`
}

// Key returns the BASE/QUOTE spelling used for market membership tests.
func (s Symbol) Key() string {
	return PairKey(s.Base, s.Quote)
}

func (s Symbol) String() string {
	return s.Key()
}

// PairKey spells a pair the way Symbol.Key does.
func PairKey(base, quote string) string {
	return base + "/" + quote
}

// OrderBookLevel is one depth tier of an order book side.
type OrderBookLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Notional returns the quote-currency value of the whole level.
func (l OrderBookLevel) Notional() float64 {
	return l.Price * l.Volume
}

// OrderBook holds both sides of a book, each sorted best price first:
// asks ascending, bids descending.
type OrderBook struct {
	Symbol    Symbol           `json:"symbol"`
	Asks      []OrderBookLevel `json:"asks"`
	Bids      []OrderBookLevel `json:"bids"`
	Timestamp time.Time        `json:"timestamp"`
}

// LegDirection says how the traded symbol relates to the currency a leg acquires.
type LegDirection int

const (
	// Forward legs trade a symbol whose base is the acquired currency: buy on asks, rate = 1/price.
	Forward LegDirection = iota
	// Inverse legs trade a symbol whose quote is the acquired currency: sell on bids, rate = price.
	Inverse
)

func (d LegDirection) String() string {
	switch d {
	case Forward:
		return "FORWARD"
	case Inverse:
		return "INVERSE"
	default:
		return fmt.Sprintf("LegDirection(%d)", int(d))
	}
}

// Side is the order side the leg would take.
func (d LegDirection) Side() string {
	if d == Inverse {
		return "sell"
	}
	return "buy"
}

// BookSide is the side of the book the leg consumes.
func (d LegDirection) BookSide() string {
	if d == Inverse {
		return "BID"
	}
	return "ASK"
}

// Levels picks the side of book consumed by a leg in this direction.
func (d LegDirection) Levels(book OrderBook) []OrderBookLevel {
	if d == Inverse {
		return book.Bids
	}
	return book.Asks
}

// Leg converts From into To by trading Symbol.
type Leg struct {
	Symbol    Symbol       `json:"symbol"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Direction LegDirection `json:"direction"`
}

// Triangle is the cycle Base -> Mid1 -> Mid2 -> Base. Legs are resolved once
// when the triangle is enumerated.
type Triangle struct {
	Base string `json:"base"`
	Mid1 string `json:"mid1"`
	Mid2 string `json:"mid2"`
	Legs [3]Leg `json:"legs"`
}

// Route renders the cycle as BASE->MID1->MID2->BASE.
func (t Triangle) Route() string {
	return fmt.Sprintf("%s->%s->%s->%s", t.Base, t.Mid1, t.Mid2, t.Base)
}

// ExecutionEstimate is the result of walking one side of a book for a target notional.
// Complete is false when the book could not fill the target (no average price).
type ExecutionEstimate struct {
	AvgPrice         float64 `json:"avg_price"`
	Complete         bool    `json:"complete"`
	FilledNotional   float64 `json:"filled_notional"`
	FilledBase       float64 `json:"filled_base"`
	ScannedLiquidity float64 `json:"scanned_liquidity"`
}
