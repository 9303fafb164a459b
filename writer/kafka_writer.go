package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "triflow/config"
	"triflow/logger"
	"triflow/models"
)

const kafkaWriteTimeout = 10 * time.Second

// OpportunityEvent is the JSON message published for each accepted opportunity.
type OpportunityEvent struct {
	RouteID       string     `json:"route_id"`
	Route         string     `json:"route"`
	Legs          []LegEvent `json:"legs"`
	Yield         float64    `json:"yield"`
	ProfitPercent float64    `json:"profit_percent"`
	PureProfit    float64    `json:"pure_profit"`
	MinLiquidity  float64    `json:"min_liquidity"`
	Target        float64    `json:"target"`
	Ready         bool       `json:"ready"`
	DetectedAt    time.Time  `json:"detected_at"`
}

type LegEvent struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	AvgPrice   float64 `json:"avg_price"`
	Filled     float64 `json:"filled"`
	Available  float64 `json:"available"`
	Multiplier float64 `json:"multiplier"`
}

func NewOpportunityEvent(opp models.Opportunity, ready bool) OpportunityEvent {
	legs := make([]LegEvent, 0, len(opp.Legs))
	for _, q := range opp.Legs {
		legs = append(legs, LegEvent{
			Symbol:     q.Leg.Symbol.Key(),
			Side:       q.Leg.Direction.Side(),
			AvgPrice:   q.Estimate.AvgPrice,
			Filled:     q.Estimate.FilledNotional,
			Available:  q.Estimate.ScannedLiquidity,
			Multiplier: q.Multiplier,
		})
	}
	return OpportunityEvent{
		RouteID:       opp.RouteID,
		Route:         opp.Triangle.Route(),
		Legs:          legs,
		Yield:         opp.Yield,
		ProfitPercent: opp.ProfitPercent,
		PureProfit:    opp.PureProfit(),
		MinLiquidity:  opp.MinLiquidity,
		Target:        opp.Target,
		Ready:         ready,
		DetectedAt:    opp.DetectedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues opportunity events and writes them from a single
// goroutine. A full queue drops the event rather than stall the scanner.
type KafkaPublisher struct {
	writer  messageWriter
	events  chan kafka.Message
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	log     *logger.Entry
}

func NewKafkaPublisher(cfg appconfig.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	p := newKafkaPublisher(w, cfg.Buffer)
	p.log.WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka publisher initialized")
	return p, nil
}

func newKafkaPublisher(w messageWriter, buffer int) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &KafkaPublisher{
		writer: w,
		events: make(chan kafka.Message, buffer),
		log:    logger.GetLogger().WithComponent("kafka_publisher"),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish enqueues the event keyed by route so a route's events stay ordered
// within one partition.
func (p *KafkaPublisher) Publish(_ context.Context, opp models.Opportunity, ready bool) {
	data, err := json.Marshal(NewOpportunityEvent(opp, ready))
	if err != nil {
		p.log.WithError(err).Warn("failed to marshal opportunity event")
		return
	}
	msg := kafka.Message{Key: []byte(opp.RouteID), Value: data, Time: opp.DetectedAt}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- msg:
	default:
		n := p.dropped.Add(1)
		p.log.LogMetric("kafka_publisher", "events_dropped", 1, "counter", logger.Fields{
			"queue_capacity": cap(p.events),
		})
		p.log.WithFields(logger.Fields{"route": opp.Triangle.Route(), "dropped_total": n}).Warn("publish queue full, dropping event")
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()
	for msg := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.log.WithError(err).Warn("failed to write message")
			continue
		}
		p.log.WithFields(logger.Fields{"key": string(msg.Key)}).Debug("event written to kafka")
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *KafkaPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events, drains the queue and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}
