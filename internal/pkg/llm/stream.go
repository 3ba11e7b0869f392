package llm

import (
	"errors"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

var errTruncated = errors.New("llm: stream ended before message_stop")

// textStream narrows the SDK event stream to text deltas.
type textStream struct {
	events  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	stopped bool
	done    bool
}

func (s *textStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.events.Next() {
		switch ev := s.events.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				return delta.Text, nil
			}
		case anthropic.MessageStopEvent:
			s.stopped = true
		}
	}
	s.done = true
	if err := s.events.Err(); err != nil {
		return "", err
	}
	if !s.stopped {
		return "", errTruncated
	}
	return "", io.EOF
}

func (s *textStream) Close() error {
	return s.events.Close()
}

// ReadAll drains a stream into one string.
func ReadAll(s Stream) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
}
