package mistralai

import (
	"errors"
	"io"
	"iter"
	"log/slog"
)

// DoneSentinel is the frame payload that ends a stream.
const DoneSentinel = "[DONE]"

// FrameReader yields raw event payloads in arrival order and io.EOF when the
// transport closes.
type FrameReader interface {
	Next() ([]byte, error)
}

// Termination records why a stream stopped.
type Termination int

// Stream states. Every state but Active is final.
const (
	Active Termination = iota
	TerminatedSentinel
	TerminatedTransportClose
	TerminatedDecodeError
	TerminatedTransportError
	TerminatedClosed
)

func (t Termination) String() string {
	switch t {
	case Active:
		return "active"
	case TerminatedSentinel:
		return "sentinel"
	case TerminatedTransportClose:
		return "transport_close"
	case TerminatedDecodeError:
		return "decode_error"
	case TerminatedTransportError:
		return "transport_error"
	case TerminatedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Normal reports whether the stream ended without error.
func (t Termination) Normal() bool {
	return t == TerminatedSentinel || t == TerminatedTransportClose
}

// ChunkStream decodes chat completion chunks from a frame source.
// It is not safe for concurrent use.
type ChunkStream struct {
	frames FrameReader
	closer io.Closer
	logger *slog.Logger

	state     Termination
	err       error
	released  bool
	closeErr  error
	delivered int
}

// NewChunkStream decodes frames until the sentinel, a failure or io.EOF.
// closer, when non-nil, is closed once the stream terminates or is closed.
func NewChunkStream(frames FrameReader, closer io.Closer) *ChunkStream {
	return &ChunkStream{
		frames: frames,
		closer: closer,
		logger: slog.New(slog.DiscardHandler),
	}
}

// Recv returns the next chunk. A normal end of stream, by sentinel or by the
// transport closing, is io.EOF. Once terminated, Recv keeps returning the same error.
func (s *ChunkStream) Recv() (ChatCompletionChunk, error) {
	if s.state != Active {
		return ChatCompletionChunk{}, s.err
	}

	frame, err := s.frames.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.terminate(TerminatedTransportClose, io.EOF)
			return ChatCompletionChunk{}, io.EOF
		}
		s.terminate(TerminatedTransportError, err)
		return ChatCompletionChunk{}, err
	}
	if string(frame) == DoneSentinel {
		s.terminate(TerminatedSentinel, io.EOF)
		return ChatCompletionChunk{}, io.EOF
	}

	var chunk ChatCompletionChunk
	if err := unmarshalObject(frame, &chunk); err != nil {
		s.terminate(TerminatedDecodeError, err)
		return ChatCompletionChunk{}, err
	}
	s.delivered++
	return chunk, nil
}

// Chunks adapts the stream to a range-over-func sequence. Iteration stops after
// the first error, which is yielded, or at the end of the stream. The stream is
// closed when iteration stops, including when the caller breaks out early.
func (s *ChunkStream) Chunks() iter.Seq2[ChatCompletionChunk, error] {
	return func(yield func(ChatCompletionChunk, error) bool) {
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying connection. It is safe to call more than once.
func (s *ChunkStream) Close() error {
	if s.state == Active {
		s.terminate(TerminatedClosed, ErrStreamClosed)
	}
	return s.closeErr
}

// Termination reports the current state.
func (s *ChunkStream) Termination() Termination { return s.state }

// Err is the terminal error, nil while active or after a normal end.
func (s *ChunkStream) Err() error {
	if s.state == Active || s.state.Normal() {
		return nil
	}
	return s.err
}

func (s *ChunkStream) terminate(state Termination, err error) {
	s.state = state
	s.err = err
	if !s.released {
		s.released = true
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	}
	if state.Normal() || state == TerminatedClosed {
		s.logger.Debug("chat stream ended", "cause", state.String(), "chunks", s.delivered)
		return
	}
	s.logger.Warn("chat stream failed", "cause", state.String(), "chunks", s.delivered, "err", err)
}
