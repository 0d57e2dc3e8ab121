package session

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// readOutput drains the process's merged stream into the session's buffers and
// event queue. It is the queue's only producer and closes the queue after its
// terminal event, so consumers can distinguish "no event yet" from "stream
// over". It never touches the registry maps.
func readOutput(s *Session) {
	defer close(s.events)

	r := bufio.NewReader(s.proc.Output())
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			s.appendOutput(line)
			s.notifyOutput(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.markErrored()
				s.events <- Event{Kind: EventError, Err: err.Error()}
				return
			}
			break
		}
	}

	// EOF means every writer of the pipe is gone; the exit code follows
	// promptly.
	code, err := s.proc.Wait(context.Background())
	if err != nil {
		s.markErrored()
		s.events <- Event{Kind: EventError, Err: err.Error()}
		return
	}
	s.events <- Event{Kind: EventCompleted, ExitCode: code}
}

// notifyOutput publishes an output notification without ever blocking the
// reader: the chunk is already in the buffers, so when the queue is full the
// notification coalesces with the ones already waiting.
func (s *Session) notifyOutput(chunk string) {
	select {
	case s.events <- Event{Kind: EventOutput, Chunk: chunk}:
	default:
	}
}
