package invoker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
)

// QueueConfig configures the AMQP queue invoker.
type QueueConfig struct {
	URL      string
	Queue    string
	PoolSize int
}

// QueueInvoker publishes campaign actions to a durable AMQP queue consumed
// by downstream action workers. Connections are pooled and replaced lazily
// when the broker drops them.
type QueueInvoker struct {
	config QueueConfig
	pool   *connectionPool
	logger logging.Logger
}

type actionMessage struct {
	CampaignID  string                 `json:"campaign_id"`
	OwnerID     string                 `json:"owner_id"`
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	TriggeredBy string                 `json:"triggered_by"`
	FiredAt     time.Time              `json:"fired_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func NewQueue(config QueueConfig, logger logging.Logger) (*QueueInvoker, error) {
	if config.URL == "" {
		return nil, errors.ConfigError("queue invoker requires an AMQP URL")
	}
	if config.Queue == "" {
		config.Queue = "campaign-actions"
	}
	if config.PoolSize <= 0 {
		config.PoolSize = 2
	}

	pool, err := newConnectionPool(config.URL, config.PoolSize)
	if err != nil {
		return nil, errors.ConnectionError("failed to create AMQP connection pool", err)
	}

	return &QueueInvoker{
		config: config,
		pool:   pool,
		logger: logger.WithFields(logging.String("invoker", "queue"), logging.String("queue", config.Queue)),
	}, nil
}

func (q *QueueInvoker) Name() string { return "queue" }

func (q *QueueInvoker) Run(ctx context.Context, campaign *storage.Campaign, execution *storage.Execution) (Summary, error) {
	body, err := json.Marshal(actionMessage{
		CampaignID:  campaign.ID,
		OwnerID:     campaign.OwnerID,
		ExecutionID: execution.ID,
		WorkflowID:  campaign.WorkflowID,
		TriggeredBy: execution.TriggeredBy,
		FiredAt:     time.Now().UTC(),
		Metadata:    execution.Metadata,
	})
	if err != nil {
		return nil, errors.InternalError("failed to marshal action message", err)
	}

	ch, conn, err := q.pool.channel()
	if err != nil {
		return nil, errors.ConnectionError("failed to get AMQP channel", err)
	}
	defer q.pool.release(ch, conn)

	if _, err := ch.QueueDeclare(q.config.Queue, true, false, false, false, nil); err != nil {
		return nil, errors.ConnectionError("failed to declare action queue", err)
	}

	err = ch.Publish("", q.config.Queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    execution.ID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to publish action message", err)
	}

	return Summary{
		"invoker": "queue",
		"queue":   q.config.Queue,
		"bytes":   len(body),
	}, nil
}

func (q *QueueInvoker) Health() error {
	ch, conn, err := q.pool.channel()
	if err != nil {
		return errors.ConnectionError("AMQP connection unavailable", err)
	}
	defer q.pool.release(ch, conn)
	return nil
}

func (q *QueueInvoker) Close() error {
	q.pool.close()
	return nil
}

type connectionPool struct {
	url         string
	connections chan *amqp.Connection
	mu          sync.RWMutex
	closed      bool
}

func newConnectionPool(url string, size int) (*connectionPool, error) {
	pool := &connectionPool{
		url:         url,
		connections: make(chan *amqp.Connection, size),
	}

	for i := 0; i < size; i++ {
		conn, err := amqp.Dial(url)
		if err != nil {
			pool.close()
			return nil, err
		}
		pool.connections <- conn
	}

	return pool, nil
}

func (p *connectionPool) channel() (*amqp.Channel, *amqp.Connection, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, nil, errors.ConnectionError("connection pool is closed", nil)
	}
	p.mu.RUnlock()

	select {
	case conn, ok := <-p.connections:
		if !ok {
			return nil, nil, errors.ConnectionError("connection pool is closed", nil)
		}
		if conn.IsClosed() {
			fresh, err := amqp.Dial(p.url)
			if err != nil {
				return nil, nil, err
			}
			conn = fresh
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return ch, conn, nil
	case <-time.After(5 * time.Second):
		return nil, nil, errors.ConnectionError("timeout waiting for connection from pool", nil)
	}
}

func (p *connectionPool) release(ch *amqp.Channel, conn *amqp.Connection) {
	if ch != nil {
		ch.Close()
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed || conn.IsClosed() {
		conn.Close()
		return
	}

	select {
	case p.connections <- conn:
	default:
		conn.Close()
	}
}

func (p *connectionPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	close(p.connections)
	for conn := range p.connections {
		conn.Close()
	}
}
