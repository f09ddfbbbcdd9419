package queues

import (
	"context"
	"encoding/json"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/traffic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	TrafficExchange   = "traffic"
	trafficAlertQueue = "trafficAlerts"
)

type TrafficEvent struct {
	Snapshot datastructure.TrafficSnapshot `json:"snapshot"`
	Alert    string                        `json:"alert,omitempty"`
}

// RoutingKey is traffic.snapshot.<level>, or traffic.alert.<level> when the snapshot has
// incidents.
func RoutingKey(s datastructure.TrafficSnapshot) string {
	kind := "snapshot"
	if len(s.Incidents) > 0 {
		kind = "alert"
	}
	return "traffic." + kind + "." + string(s.OverallTrafficLevel)
}

func NewTrafficPublishing(s datastructure.TrafficSnapshot) (amqp.Publishing, error) {
	ev := TrafficEvent{Snapshot: s}
	if msg, ok := traffic.AlertMessage(s); ok {
		ev.Alert = msg
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    s.Timestamp,
		Type:         "traffic.snapshot",
		Body:         body,
	}, nil
}

// Publisher sends traffic snapshots to the traffic exchange.
type Publisher struct {
	client  *Client
	timeout time.Duration
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client, timeout: 10 * time.Second}
}

func (p *Publisher) Publish(ctx context.Context, s datastructure.TrafficSnapshot) error {
	msg, err := NewTrafficPublishing(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Push(ctx, msg, TrafficExchange, RoutingKey(s))
}
