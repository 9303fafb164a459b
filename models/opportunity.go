package models

import (
	"math"
	"strconv"
	"time"
)

// LegQuote is one evaluated leg of a triangle.
type LegQuote struct {
	Leg        Leg               `json:"leg"`
	Estimate   ExecutionEstimate `json:"estimate"`
	Multiplier float64           `json:"multiplier"`
}

// Opportunity is a triangle whose net yield fell inside the profit band.
type Opportunity struct {
	RouteID       string      `json:"route_id"`
	Triangle      Triangle    `json:"triangle"`
	Legs          [3]LegQuote `json:"legs"`
	Yield         float64     `json:"yield"`
	ProfitPercent float64     `json:"profit_percent"`
	MinLiquidity  float64     `json:"min_liquidity"`
	Target        float64     `json:"target"`
	DetectedAt    time.Time   `json:"detected_at"`
}

// PureProfit is the profit in base-currency units on the target notional.
func (o Opportunity) PureProfit() float64 {
	return Round2((o.Yield - 1) * o.Target)
}

// Execution describes a (simulated) execution of an opportunity.
type Execution struct {
	ID            string    `json:"id"`
	Route         string    `json:"route"`
	ProfitPercent float64   `json:"profit_percent"`
	Simulated     bool      `json:"simulated"`
	Success       bool      `json:"success"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// AuditTimeLayout is the timestamp layout of audit lines.
const AuditTimeLayout = "2006-01-02 15:04:05.000000"

// AuditRecord is one append-only audit line.
type AuditRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Route         string    `json:"route"`
	ProfitPercent float64   `json:"profit_percent"`
	MinLiquidity  float64   `json:"min_liquidity"`
}

// NewAuditRecord builds the audit record for an opportunity.
func NewAuditRecord(opp Opportunity) AuditRecord {
	return AuditRecord{
		Timestamp:     opp.DetectedAt.UTC(),
		Route:         opp.Triangle.Route(),
		ProfitPercent: opp.ProfitPercent,
		MinLiquidity:  opp.MinLiquidity,
	}
}

// Line renders the record as timestamp,route,profit,liquidity.
func (r AuditRecord) Line() string {
	return r.Timestamp.UTC().Format(AuditTimeLayout) + "," +
		r.Route + "," +
		strconv.FormatFloat(r.ProfitPercent, 'f', 4, 64) + "," +
		strconv.FormatFloat(r.MinLiquidity, 'f', -1, 64)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
