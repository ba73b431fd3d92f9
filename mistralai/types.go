package mistralai

import (
	"encoding/json"
	"fmt"
	"regexp"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

// ParseRole maps a wire value to a Role. The empty string is kept as is so that
// stream deltas without a role stay empty.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case "", RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r
	default:
		return RoleUnknown
	}
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("role: %w", err)
	}
	*r = ParseRole(s)
	return nil
}

type FinishReason string

const (
	FinishReasonStop        FinishReason = "stop"
	FinishReasonLength      FinishReason = "length"
	FinishReasonModelLength FinishReason = "model_length"
	FinishReasonToolCall    FinishReason = "tool_call"
	FinishReasonToolCalls   FinishReason = "tool_calls"
	FinishReasonError       FinishReason = "error"
	FinishReasonUnknown     FinishReason = "unknown"
)

func ParseFinishReason(s string) FinishReason {
	switch f := FinishReason(s); f {
	case "", FinishReasonStop, FinishReasonLength, FinishReasonModelLength,
		FinishReasonToolCall, FinishReasonToolCalls, FinishReasonError:
		return f
	default:
		return FinishReasonUnknown
	}
}

func (f *FinishReason) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("finish_reason: %w", err)
	}
	*f = ParseFinishReason(s)
	return nil
}

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto    ToolChoice = "auto"
	ToolChoiceAny     ToolChoice = "any"
	ToolChoiceNone    ToolChoice = "none"
	ToolChoiceUnknown ToolChoice = "unknown"
)

func ParseToolChoice(s string) ToolChoice {
	switch c := ToolChoice(s); c {
	case "", ToolChoiceAuto, ToolChoiceAny, ToolChoiceNone:
		return c
	default:
		return ToolChoiceUnknown
	}
}

func (c *ToolChoice) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("tool_choice: %w", err)
	}
	*c = ParseToolChoice(s)
	return nil
}

// Message is one entry of a conversation, or a partial delta when streamed.
//
// Providers require system messages to precede user messages; this is not
// checked client-side.
type Message struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`

	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool result to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

func SystemMessage(text string) Message    { return Message{Role: RoleSystem, Content: text} }
func UserMessage(text string) Message      { return Message{Role: RoleUser, Content: text} }
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// ToolMessage carries the result of the tool call identified by toolCallID.
func ToolMessage(toolCallID, name, text string) Message {
	return Message{Role: RoleTool, Content: text, Name: name, ToolCallID: toolCallID}
}

func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return out
}

type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

const ToolTypeFunction = "function"

// FunctionTool declares a function the model may call.
type FunctionTool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Description string         `json:"description,omitempty"`
	Name        string         `json:"name"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

var functionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewFunctionTool builds a function tool from a JSON schema document.
// The name must match [A-Za-z0-9_-]{1,64}. An empty schema leaves Parameters nil.
func NewFunctionTool(name, description, jsonSchema string) (FunctionTool, error) {
	if !functionNamePattern.MatchString(name) {
		return FunctionTool{}, fmt.Errorf("%w: function name %q must match [A-Za-z0-9_-]{1,64}", ErrInvalidRequest, name)
	}
	var params map[string]any
	if jsonSchema != "" {
		if err := json.Unmarshal([]byte(jsonSchema), &params); err != nil {
			return FunctionTool{}, fmt.Errorf("%w: function %q parameters: %v", ErrInvalidRequest, name, err)
		}
	}
	return FunctionTool{
		Type:     ToolTypeFunction,
		Function: Function{Description: description, Name: name, Parameters: params},
	}, nil
}

type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
)

type ResponseFormat struct {
	Type ResponseFormatType `json:"type"`
}

// Usage reports token accounting. TotalTokens is taken from the provider as is.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
