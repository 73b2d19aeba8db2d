package events

// TopicPublished is emitted after an event was handed to a topic's listeners.
type TopicPublished struct {
	Topic     string
	Delivered int
}

// ListenerOpened is emitted when a listener registers on a topic.
type ListenerOpened struct {
	Topic      string
	ListenerID uint64
}

// ListenerClosed is emitted once per listener. Err is set when the listener
// was closed because delivery to it failed.
type ListenerClosed struct {
	Topic      string
	ListenerID uint64
	Err        error
}
