// Package notify publishes per-video outcome events to RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bdougie/framevocab/internal/models"
)

// OutcomeEvent is the JSON body published for every processed video.
type OutcomeEvent struct {
	RunID      uuid.UUID `json:"run_id"`
	Video      string    `json:"video"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	Frames     int       `json:"frames"`
	Recognized int       `json:"recognized"`
	Words      int       `json:"words"`
	Failures   []Failure `json:"failures,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	ElapsedMs  int64     `json:"elapsed_ms"`
}

// Failure is one isolated frame error inside an OutcomeEvent.
type Failure struct {
	Frame       int     `json:"frame"`
	TimestampS  float64 `json:"timestamp_s"`
	Stage       string  `json:"stage"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
}

// NewOutcomeEvent converts an outcome into its wire form.
func NewOutcomeEvent(runID uuid.UUID, o models.ProcessingOutcome) OutcomeEvent {
	ev := OutcomeEvent{
		RunID:      runID,
		Video:      o.Video,
		Path:       o.Path,
		Status:     string(o.Status),
		Reason:     o.Reason(),
		Frames:     o.Frames,
		Recognized: o.Recognized,
		Words:      len(o.Words),
		OutputPath: o.OutputPath,
		ElapsedMs:  o.Elapsed.Milliseconds(),
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	for _, f := range o.Failures {
		ev.Failures = append(ev.Failures, Failure{
			Frame:       f.Index,
			TimestampS:  f.Timestamp.Seconds(),
			Stage:       f.Stage,
			Kind:        models.Kind(f.Err),
			Description: f.Err.Error(),
		})
	}
	return ev
}

// Publisher sends OutcomeEvents to a durable queue.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, queue: queue}, nil
}

func (p *Publisher) Name() string { return "rabbitmq" }

func (p *Publisher) Publish(ctx context.Context, runID uuid.UUID, outcome models.ProcessingOutcome) error {
	body, err := json.Marshal(NewOutcomeEvent(runID, outcome))
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",
		p.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    runID.String() + "/" + outcome.Video,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
