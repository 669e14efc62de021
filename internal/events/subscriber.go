package events

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages matching topic on the returned channel
	// until cancel is called.
	Subscribe(topic string) (ch <-chan Message, cancel func(), err error)
	Close() error
}
