// Package notify moves push notifications through RabbitMQ: the engine
// publishes PushMessage payloads to the notify.push queue and a background
// consumer delivers them.
package notify

// Message kinds.
const (
	KindUser  = "user"
	KindTopic = "topic"
)

// QueueName is the broker queue notifications travel through.
const QueueName = "notify.push"

// PushMessage is one notification on the wire.  Either UserID (kind
// "user") or Topic (kind "topic") addresses it.
type PushMessage struct {
	Kind   string            `json:"kind"`
	UserID uint64            `json:"user_id,omitempty"`
	Topic  string            `json:"topic,omitempty"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt string            `json:"sent_at"`
}
