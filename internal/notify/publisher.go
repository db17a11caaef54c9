package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/antrikuy/antrikuy-backend/internal/monitoring"
)

// Publisher hands notifications to the broker.  Every push is
// fire-and-forget: failures are logged and counted, never surfaced to
// the request that triggered them.
type Publisher struct {
	url string
	log zerolog.Logger
}

func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// NotifyUser queues a push addressed to one user.
func (p *Publisher) NotifyUser(userID uint64, title, body string, data map[string]string) {
	go p.publish(PushMessage{
		Kind:   KindUser,
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// NotifyTopic queues a push addressed to a school topic.
func (p *Publisher) NotifyTopic(topic, title, body string, data map[string]string) {
	go p.publish(PushMessage{
		Kind:   KindTopic,
		Topic:  topic,
		Title:  title,
		Body:   body,
		Data:   data,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(msg PushMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.send(ctx, msg); err != nil {
		monitoring.ObserveNotification(msg.Kind, "error")
		p.log.Error().Err(err).Str("kind", msg.Kind).Msg("notification publish failed")
		return
	}
	monitoring.ObserveNotification(msg.Kind, "ok")
}

func (p *Publisher) send(ctx context.Context, msg PushMessage) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
