package mistralai

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/go-mistral/internal/sse"
)

type sliceFrames struct {
	frames []string
	err    error
	reads  int
}

func (f *sliceFrames) Next() ([]byte, error) {
	if f.reads < len(f.frames) {
		fr := f.frames[f.reads]
		f.reads++
		return []byte(fr), nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, io.EOF
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error {
	c.n++
	return nil
}

const chunkC1 = `{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hi"},"finish_reason":null}]}`

func TestChunkStream_SentinelEndsStream(t *testing.T) {
	frames := &sliceFrames{frames: []string{chunkC1, DoneSentinel, chunkC1}}
	closer := &countingCloser{}
	s := NewChunkStream(frames, closer)

	chunk, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "c1", chunk.ID)
	assert.Equal(t, "Hi", chunk.Content())

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, TerminatedSentinel, s.Termination())
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, closer.n)

	// Terminal states are sticky and nothing after the sentinel is read.
	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, frames.reads)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, closer.n)
}

func TestChunkStream_TransportCloseIsNormal(t *testing.T) {
	s := NewChunkStream(&sliceFrames{frames: []string{chunkC1}}, nil)

	_, err := s.Recv()
	require.NoError(t, err)
	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, TerminatedTransportClose, s.Termination())
	assert.True(t, s.Termination().Normal())
}

func TestChunkStream_DecodeError(t *testing.T) {
	for _, frame := range []string{`{"id":`, ``, `[DONE] `, `null`, ` null `, `"hi"`, `[]`} {
		s := NewChunkStream(&sliceFrames{frames: []string{frame, chunkC1}}, nil)

		_, err := s.Recv()
		var derr *DecodeError
		require.ErrorAs(t, err, &derr, "frame %q", frame)
		assert.ErrorIs(t, err, ErrDecode)
		assert.Equal(t, frame, string(derr.Frame))
		assert.Equal(t, TerminatedDecodeError, s.Termination())

		_, err2 := s.Recv()
		assert.Same(t, err, err2)
		assert.Equal(t, err, s.Err())
	}
}

func TestChunkStream_NullFrameOverSSE(t *testing.T) {
	closer := &countingCloser{}
	s := NewChunkStream(sse.NewFrames(strings.NewReader("data: null\n\ndata: [DONE]\n\n")), closer)

	chunk, err := s.Recv()
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, chunk.ID)
	assert.Equal(t, TerminatedDecodeError, s.Termination())
	assert.Equal(t, 1, closer.n)

	_, err = DrainStream(s)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestChunkStream_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	closer := &countingCloser{}
	s := NewChunkStream(&sliceFrames{frames: []string{chunkC1}, err: boom}, closer)

	_, err := s.Recv()
	require.NoError(t, err)
	_, err = s.Recv()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, TerminatedTransportError, s.Termination())
	assert.Equal(t, 1, closer.n)
}

func TestChunkStream_CloseWhileActive(t *testing.T) {
	closer := &countingCloser{}
	s := NewChunkStream(&sliceFrames{frames: []string{chunkC1}}, closer)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, closer.n)
	assert.Equal(t, TerminatedClosed, s.Termination())

	_, err := s.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestChunkStream_ChunksOverSSE(t *testing.T) {
	body := "data: " + chunkC1 + "\n\n" +
		": keep-alive\n\n" +
		`data: {"id":"c1","choices":[{"index":0,"delta":{"content":" there"},"finish_reason":"stop"}]}` + "\n\n" +
		"data: [DONE]\n\n"
	s := NewChunkStream(sse.NewFrames(strings.NewReader(body)), nil)

	var got []string
	for chunk, err := range s.Chunks() {
		require.NoError(t, err)
		got = append(got, chunk.Content())
	}
	assert.Equal(t, []string{"Hi", " there"}, got)
	assert.Equal(t, TerminatedSentinel, s.Termination())
}

func TestChunkStream_ChunksBreakCloses(t *testing.T) {
	closer := &countingCloser{}
	s := NewChunkStream(&sliceFrames{frames: []string{chunkC1, chunkC1, chunkC1}}, closer)

	n := 0
	for range s.Chunks() {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, closer.n)
	assert.Equal(t, TerminatedClosed, s.Termination())
}

func TestChunkStream_ChunksYieldsError(t *testing.T) {
	s := NewChunkStream(&sliceFrames{frames: []string{chunkC1, "nope"}}, nil)

	var errs []error
	n := 0
	for _, err := range s.Chunks() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	assert.Equal(t, 1, n)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDecode)
}

func TestDrainStream_FoldsChunks(t *testing.T) {
	frames := []string{
		`{"id":"c9","object":"chat.completion.chunk","created":5,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"},"finish_reason":null}]}`,
		`{"id":"c9","created":5,"model":"m","choices":[{"index":1,"delta":{"content":"B"},"finish_reason":null}]}`,
		`{"id":"c9","created":5,"model":"m","choices":[{"index":0,"delta":{"content":"lo","tool_calls":[{"id":"t1","function":{"name":"f","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`,
		`{"id":"c9","created":5,"model":"m","choices":[{"index":1,"delta":{"content":"ye"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`,
		DoneSentinel,
	}
	res, err := DrainStream(NewChunkStream(&sliceFrames{frames: frames}, nil))
	require.NoError(t, err)

	assert.Equal(t, "c9", res.ID)
	assert.Equal(t, int64(5), res.Created)
	require.Len(t, res.Choices, 2)
	assert.Equal(t, Message{
		Role:      RoleAssistant,
		Content:   "Hello",
		ToolCalls: []ToolCall{{ID: "t1", Function: FunctionCall{Name: "f", Arguments: "{}"}}},
	}, res.Choices[0].Message)
	assert.Equal(t, FinishReasonToolCalls, res.Choices[0].FinishReason)
	assert.Equal(t, "Bye", res.Choices[1].Message.Content)
	assert.Equal(t, RoleAssistant, res.Choices[1].Message.Role)
	assert.Equal(t, FinishReasonStop, res.Choices[1].FinishReason)
	assert.Equal(t, &Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, res.Usage)
}

func TestDrainStream_PropagatesError(t *testing.T) {
	_, err := DrainStream(NewChunkStream(&sliceFrames{frames: []string{chunkC1, "{"}}, nil))
	assert.ErrorIs(t, err, ErrDecode)
}
