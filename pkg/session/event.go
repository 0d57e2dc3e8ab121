package session

// EventKind discriminates reader-to-consumer messages.
type EventKind int

const (
	// EventOutput signals that new output landed in the session's buffers.
	EventOutput EventKind = iota
	// EventCompleted carries the process's exit code and ends the stream.
	EventCompleted
	// EventError reports a stream read failure and ends the stream.
	EventError
)

// Event is one message on a session's queue. The reader goroutine is the only
// producer, which guarantees FIFO delivery per session.
type Event struct {
	Kind     EventKind
	Chunk    string // EventOutput: the chunk as the reader saw it
	ExitCode int    // EventCompleted
	Err      string // EventError
}

// eventQueueCapacity bounds the notification queue. Output notifications are
// coalesced when the queue is full (the data itself lives in the session
// buffers), so the reader only ever blocks on its terminal event.
const eventQueueCapacity = 256
