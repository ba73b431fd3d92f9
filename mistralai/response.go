package mistralai

import "time"

// ChatCompletion is the body of a synchronous chat completion response.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// CreatedTime converts the unix-seconds Created field.
func (c ChatCompletion) CreatedTime() time.Time { return time.Unix(c.Created, 0) }

// Content returns the content of the first choice, or "" when there is none.
func (c ChatCompletion) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

// ChatCompletionChunk is one decoded stream frame. Usage is usually present
// only on the last chunk.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice carries a partial message. FinishReason stays nil until the
// choice's final chunk.
type ChunkChoice struct {
	Index        int           `json:"index"`
	Delta        Message       `json:"delta"`
	FinishReason *FinishReason `json:"finish_reason"`
}

func (c ChatCompletionChunk) CreatedTime() time.Time { return time.Unix(c.Created, 0) }

// Content concatenates the delta content of every choice in the chunk.
func (c ChatCompletionChunk) Content() string {
	switch len(c.Choices) {
	case 0:
		return ""
	case 1:
		return c.Choices[0].Delta.Content
	}
	var s string
	for _, ch := range c.Choices {
		s += ch.Delta.Content
	}
	return s
}
