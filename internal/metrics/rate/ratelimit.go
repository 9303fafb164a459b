package rate

import (
	"strings"

	"triflow/logger"
)

// Bybit v5 return codes that signal throttling.
const (
	bybitTooManyVisits = 10006
	bybitIPRateLimit   = 10018
)

// Limit classifies an exchange error.
type Limit int

const (
	LimitNone Limit = iota
	LimitRate
	LimitIPBan
)

func (l Limit) String() string {
	switch l {
	case LimitRate:
		return "rate_limit_exceeded"
	case LimitIPBan:
		return "ip_ban"
	default:
		return "none"
	}
}

// Classify inspects a Bybit return code and message and decides whether it is
// a rate limit or an IP ban. The message is checked as well because transport
// level errors carry no return code.
func Classify(code int, msg string) Limit {
	switch code {
	case bybitIPRateLimit:
		return LimitIPBan
	case bybitTooManyVisits:
		return LimitRate
	}
	lowerMsg := strings.ToLower(msg)
	if strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")) {
		return LimitIPBan
	}
	if strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "too many visits") {
		return LimitRate
	}
	return LimitNone
}

// ReportLimit records a metric and a log line for throttling errors and
// returns the classification. Nothing is recorded for LimitNone.
func ReportLimit(log *logger.Log, endpoint string, code int, msg string) Limit {
	limit := Classify(code, msg)
	if limit == LimitNone {
		return limit
	}
	l := log.WithComponent("bybit_client")
	fields := logger.Fields{
		"exchange": "bybit",
		"endpoint": endpoint,
		"ret_code": code,
	}
	l.LogMetric("bybit_client", limit.String(), int64(1), "counter", fields)
	if limit == LimitIPBan {
		l.WithFields(fields).Error("ip banned")
	} else {
		l.WithFields(fields).Warn("rate limit exceeded")
	}
	return limit
}
