package mistralai

// ChatCompletionRequest is the body of POST /v1/chat/completions.
//
// Optional numeric fields are pointers so that an explicit zero is sent.
// An empty Model is filled with the client's default model.
type ChatCompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`

	Tools      []FunctionTool `json:"tools,omitempty"`
	ToolChoice ToolChoice     `json:"tool_choice,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	RandomSeed  *int     `json:"random_seed,omitempty"`

	Stream     bool `json:"stream"`
	SafePrompt bool `json:"safe_prompt"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type RequestOption func(*ChatCompletionRequest)

// NewChatCompletionRequest builds a request with temperature 0.7, top_p 1 and
// stream and safe_prompt off. Messages are copied.
func NewChatCompletionRequest(model string, messages []Message, opts ...RequestOption) ChatCompletionRequest {
	req := ChatCompletionRequest{
		Model:       model,
		Messages:    cloneMessages(messages),
		Temperature: ptr(DefaultTemperature),
		TopP:        ptr(DefaultTopP),
	}
	for _, o := range opts {
		if o != nil {
			o(&req)
		}
	}
	return req
}

func WithTemperature(t float64) RequestOption {
	return func(r *ChatCompletionRequest) { r.Temperature = ptr(t) }
}

// WithoutTemperature leaves sampling temperature to the provider.
func WithoutTemperature() RequestOption {
	return func(r *ChatCompletionRequest) { r.Temperature = nil }
}

func WithTopP(p float64) RequestOption {
	return func(r *ChatCompletionRequest) { r.TopP = ptr(p) }
}

func WithMaxTokens(n int) RequestOption {
	return func(r *ChatCompletionRequest) { r.MaxTokens = ptr(n) }
}

func WithRandomSeed(seed int) RequestOption {
	return func(r *ChatCompletionRequest) { r.RandomSeed = ptr(seed) }
}

func WithStream(stream bool) RequestOption {
	return func(r *ChatCompletionRequest) { r.Stream = stream }
}

func WithSafePrompt(safe bool) RequestOption {
	return func(r *ChatCompletionRequest) { r.SafePrompt = safe }
}

func WithTools(tools ...FunctionTool) RequestOption {
	return func(r *ChatCompletionRequest) { r.Tools = append(r.Tools, tools...) }
}

func WithToolChoice(c ToolChoice) RequestOption {
	return func(r *ChatCompletionRequest) { r.ToolChoice = c }
}

func WithResponseFormat(t ResponseFormatType) RequestOption {
	return func(r *ChatCompletionRequest) { r.ResponseFormat = &ResponseFormat{Type: t} }
}

// Clone returns a deep copy.
func (r ChatCompletionRequest) Clone() ChatCompletionRequest {
	out := r
	out.Messages = cloneMessages(r.Messages)
	if r.Tools != nil {
		out.Tools = make([]FunctionTool, len(r.Tools))
		for i, t := range r.Tools {
			out.Tools[i] = t.clone()
		}
	}
	out.Temperature = clonePtr(r.Temperature)
	out.TopP = clonePtr(r.TopP)
	out.MaxTokens = clonePtr(r.MaxTokens)
	out.RandomSeed = clonePtr(r.RandomSeed)
	out.ResponseFormat = clonePtr(r.ResponseFormat)
	return out
}

func (t FunctionTool) clone() FunctionTool {
	out := t
	out.Function.Parameters = cloneMap(t.Function.Parameters)
	return out
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
