// Package hub fans status events out to dashboard websocket clients
// using a channel-based broadcast loop.
package hub

// Message is one encoded status event.
type Message struct {
	// Topic scopes the message. Clients subscribed to a topic only receive
	// messages with that topic; unsubscribed clients receive everything.
	Topic string
	Data  []byte
}

// wants reports whether a client subscribed to topic should receive m.
func (m Message) wants(topic string) bool {
	return topic == "" || topic == m.Topic
}
