package models

import (
	"testing"
	"time"
)

func TestLegDirectionLevels(t *testing.T) {
	book := OrderBook{
		Asks: []OrderBookLevel{{Price: 101, Volume: 1}},
		Bids: []OrderBookLevel{{Price: 99, Volume: 2}},
	}
	if got := Forward.Levels(book); got[0].Price != 101 {
		t.Fatalf("forward leg must consume asks, got %v", got)
	}
	if got := Inverse.Levels(book); got[0].Price != 99 {
		t.Fatalf("inverse leg must consume bids, got %v", got)
	}
	if Forward.Side() != "buy" || Inverse.Side() != "sell" {
		t.Fatalf("unexpected sides %s/%s", Forward.Side(), Inverse.Side())
	}
}

func TestTriangleRoute(t *testing.T) {
	tri := Triangle{Base: "USDT", Mid1: "BTC", Mid2: "ETH"}
	if got := tri.Route(); got != "USDT->BTC->ETH->USDT" {
		t.Fatalf("unexpected route %q", got)
	}
}

func TestAuditRecordLine(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC)
	rec := AuditRecord{
		Timestamp:     ts,
		Route:         "USDT->BTC->ETH->USDT",
		ProfitPercent: 1.023456,
		MinLiquidity:  151.25,
	}
	want := "2024-03-01 12:30:45.123456,USDT->BTC->ETH->USDT,1.0235,151.25"
	if got := rec.Line(); got != want {
		t.Fatalf("line = %q, want %q", got, want)
	}
}

func TestPureProfit(t *testing.T) {
	opp := Opportunity{Yield: 1.01023, Target: 100}
	if got := opp.PureProfit(); got != 1.02 {
		t.Fatalf("pure profit = %v, want 1.02", got)
	}
}
