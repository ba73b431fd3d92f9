package mistralai

import (
	"errors"
	"io"
	"slices"
	"strings"
)

// Accumulator folds stream chunks into a ChatCompletion. Content is concatenated
// per choice index; tool calls are appended in arrival order.
type Accumulator struct {
	id      string
	object  string
	created int64
	model   string
	usage   *Usage

	choices map[int]*choiceState
	order   []int
}

type choiceState struct {
	role      Role
	name      string
	content   strings.Builder
	toolCalls []ToolCall
	finish    FinishReason
}

func (a *Accumulator) Add(chunk ChatCompletionChunk) {
	if a.id == "" {
		a.id = chunk.ID
	}
	if a.object == "" {
		a.object = chunk.Object
	}
	if a.created == 0 {
		a.created = chunk.Created
	}
	if a.model == "" {
		a.model = chunk.Model
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.usage = &u
	}
	if a.choices == nil {
		a.choices = make(map[int]*choiceState)
	}
	for _, ch := range chunk.Choices {
		st, ok := a.choices[ch.Index]
		if !ok {
			st = &choiceState{}
			a.choices[ch.Index] = st
			a.order = append(a.order, ch.Index)
		}
		if ch.Delta.Role != "" {
			st.role = ch.Delta.Role
		}
		if ch.Delta.Name != "" {
			st.name = ch.Delta.Name
		}
		st.content.WriteString(ch.Delta.Content)
		st.toolCalls = append(st.toolCalls, ch.Delta.ToolCalls...)
		if ch.FinishReason != nil && *ch.FinishReason != "" {
			st.finish = *ch.FinishReason
		}
	}
}

// Result returns the completion assembled so far. Choices are ordered by index
// and default to the assistant role.
func (a *Accumulator) Result() ChatCompletion {
	out := ChatCompletion{
		ID:      a.id,
		Object:  "chat.completion",
		Created: a.created,
		Model:   a.model,
	}
	if a.usage != nil {
		u := *a.usage
		out.Usage = &u
	}
	idx := slices.Clone(a.order)
	slices.Sort(idx)
	out.Choices = make([]Choice, 0, len(idx))
	for _, i := range idx {
		st := a.choices[i]
		role := st.role
		if role == "" {
			role = RoleAssistant
		}
		msg := Message{Role: role, Name: st.name, Content: st.content.String()}
		if len(st.toolCalls) > 0 {
			msg.ToolCalls = slices.Clone(st.toolCalls)
		}
		out.Choices = append(out.Choices, Choice{Index: i, Message: msg, FinishReason: st.finish})
	}
	return out
}

// DrainStream reads s to the end, closes it and returns the folded completion.
func DrainStream(s *ChunkStream) (*ChatCompletion, error) {
	defer s.Close()

	var acc Accumulator
	for {
		chunk, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		acc.Add(chunk)
	}
	res := acc.Result()
	return &res, nil
}
