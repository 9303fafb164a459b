package bybit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"triflow/models"
)

type instrumentEntry struct {
	Symbol    string `json:"symbol"`
	BaseCoin  string `json:"baseCoin"`
	QuoteCoin string `json:"quoteCoin"`
	Status    string `json:"status"`
}

type instrumentsPayload struct {
	Category       string            `json:"category"`
	List           []instrumentEntry `json:"list"`
	NextPageCursor string            `json:"nextPageCursor"`
}

type orderbookPayload struct {
	Symbol string     `json:"s"`
	Asks   [][]string `json:"a"`
	Bids   [][]string `json:"b"`
	Ts     int64      `json:"ts"`
	Update int64      `json:"u"`
}

type walletCoin struct {
	Coin          string `json:"coin"`
	WalletBalance string `json:"walletBalance"`
	Equity        string `json:"equity"`
}

type walletAccount struct {
	AccountType string       `json:"accountType"`
	Coin        []walletCoin `json:"coin"`
}

type walletPayload struct {
	List []walletAccount `json:"list"`
}

// decodeResult re-encodes the SDK's untyped result into a typed payload.
func decodeResult(result interface{}, out interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// parseAmount converts an exchange decimal string; empty strings count as zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

func (p instrumentsPayload) symbols() []models.Symbol {
	out := make([]models.Symbol, 0, len(p.List))
	for _, e := range p.List {
		if e.Status != "" && !strings.EqualFold(e.Status, "Trading") {
			continue
		}
		if e.BaseCoin == "" || e.QuoteCoin == "" {
			continue
		}
		out = append(out, models.Symbol{
			Base:  strings.ToUpper(e.BaseCoin),
			Quote: strings.ToUpper(e.QuoteCoin),
			Name:  e.Symbol,
		})
	}
	return out
}

func parseLevels(raw [][]string) ([]models.OrderBookLevel, error) {
	levels := make([]models.OrderBookLevel, 0, len(raw))
	for i, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("level %d: expected [price, size], got %v", i, lvl)
		}
		price, err := parseAmount(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		volume, err := parseAmount(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("level %d size: %w", i, err)
		}
		if price <= 0 {
			continue
		}
		levels = append(levels, models.OrderBookLevel{Price: price, Volume: volume})
	}
	return levels, nil
}

func (p orderbookPayload) book(symbol models.Symbol) (models.OrderBook, error) {
	asks, err := parseLevels(p.Asks)
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("asks: %w", err)
	}
	bids, err := parseLevels(p.Bids)
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("bids: %w", err)
	}
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	ts := time.Now().UTC()
	if p.Ts > 0 {
		ts = time.UnixMilli(p.Ts).UTC()
	}
	return models.OrderBook{Symbol: symbol, Asks: asks, Bids: bids, Timestamp: ts}, nil
}

// totals sums wallet balances per coin across accounts.
func (p walletPayload) totals() (map[string]float64, error) {
	out := make(map[string]float64)
	for _, acct := range p.List {
		for _, c := range acct.Coin {
			amount, err := parseAmount(c.WalletBalance)
			if err != nil {
				return nil, fmt.Errorf("coin %s: %w", c.Coin, err)
			}
			out[strings.ToUpper(c.Coin)] += amount
		}
	}
	return out, nil
}
