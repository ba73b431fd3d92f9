package mistralai

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// MaxEmbeddingInputs bounds the number of list elements in one embeddings request.
const MaxEmbeddingInputs = 1024

type InputKind int

const (
	InputNone InputKind = iota
	InputText
	InputTexts
	InputTokens
	InputTokenBatch
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputTexts:
		return "texts"
	case InputTokens:
		return "tokens"
	case InputTokenBatch:
		return "token_batch"
	default:
		return "none"
	}
}

// EmbeddingInput holds exactly one of: a single text, a list of texts, a list
// of token ids, or a list of token id lists. The zero value is invalid.
type EmbeddingInput struct {
	kind   InputKind
	text   string
	texts  []string
	tokens []int
	batch  [][]int
}

func TextInput(text string) EmbeddingInput {
	return EmbeddingInput{kind: InputText, text: text}
}

func TextsInput(texts ...string) EmbeddingInput {
	return EmbeddingInput{kind: InputTexts, texts: append([]string{}, texts...)}
}

func TokensInput(tokens ...int) EmbeddingInput {
	return EmbeddingInput{kind: InputTokens, tokens: append([]int{}, tokens...)}
}

func TokenBatchInput(batch ...[]int) EmbeddingInput {
	out := make([][]int, len(batch))
	for i, b := range batch {
		out[i] = append([]int{}, b...)
	}
	return EmbeddingInput{kind: InputTokenBatch, batch: out}
}

// NewEmbeddingInput accepts a string, []string, []int, [][]int, or a []any whose
// elements are all strings, all integers, or all integer lists (as produced by
// decoding JSON into any). The result is validated.
func NewEmbeddingInput(v any) (EmbeddingInput, error) {
	var in EmbeddingInput
	switch x := v.(type) {
	case nil:
		return in, fmt.Errorf("%w: embeddings input can not be null", ErrInvalidRequest)
	case string:
		in = TextInput(x)
	case []string:
		in = TextsInput(x...)
	case []int:
		in = TokensInput(x...)
	case [][]int:
		in = TokenBatchInput(x...)
	case []any:
		var err error
		if in, err = inputFromList(x); err != nil {
			return EmbeddingInput{}, err
		}
	default:
		return in, fmt.Errorf("%w: embeddings input must be a string or a list, got %T", ErrInvalidRequest, v)
	}
	if err := in.Validate(); err != nil {
		return EmbeddingInput{}, err
	}
	return in, nil
}

func inputFromList(list []any) (EmbeddingInput, error) {
	if len(list) == 0 {
		return EmbeddingInput{}, fmt.Errorf("%w: embeddings input list can not be empty", ErrInvalidRequest)
	}
	switch list[0].(type) {
	case string:
		texts := make([]string, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return EmbeddingInput{}, fmt.Errorf("%w: embeddings input element %d: want string, got %T", ErrInvalidRequest, i, e)
			}
			texts[i] = s
		}
		return EmbeddingInput{kind: InputTexts, texts: texts}, nil
	case []any, []int:
		// Nested lists are token batches only; nested strings are rejected.
		batch := make([][]int, len(list))
		for i, e := range list {
			toks, err := tokenList(e)
			if err != nil {
				return EmbeddingInput{}, fmt.Errorf("%w: embeddings input element %d: %v", ErrInvalidRequest, i, err)
			}
			batch[i] = toks
		}
		return EmbeddingInput{kind: InputTokenBatch, batch: batch}, nil
	default:
		if _, ok := asInt(list[0]); !ok {
			return EmbeddingInput{}, fmt.Errorf("%w: embeddings input list elements must be strings, integers or lists, got %T", ErrInvalidRequest, list[0])
		}
		toks, err := tokenList(list)
		if err != nil {
			return EmbeddingInput{}, fmt.Errorf("%w: embeddings input: %v", ErrInvalidRequest, err)
		}
		return EmbeddingInput{kind: InputTokens, tokens: toks}, nil
	}
}

func tokenList(v any) ([]int, error) {
	switch x := v.(type) {
	case []int:
		return append([]int{}, x...), nil
	case []any:
		out := make([]int, len(x))
		for i, e := range x {
			n, ok := asInt(e)
			if !ok {
				return nil, fmt.Errorf("token %d: want integer, got %v", i, e)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want integer list, got %T", v)
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func (in EmbeddingInput) Kind() InputKind { return in.kind }

// Len is the number of list elements, or 1 for a single text.
func (in EmbeddingInput) Len() int {
	switch in.kind {
	case InputText:
		return 1
	case InputTexts:
		return len(in.texts)
	case InputTokens:
		return len(in.tokens)
	case InputTokenBatch:
		return len(in.batch)
	default:
		return 0
	}
}

func (in EmbeddingInput) Text() (string, bool)        { return in.text, in.kind == InputText }
func (in EmbeddingInput) Texts() ([]string, bool)     { return in.texts, in.kind == InputTexts }
func (in EmbeddingInput) Tokens() ([]int, bool)       { return in.tokens, in.kind == InputTokens }
func (in EmbeddingInput) TokenBatch() ([][]int, bool) { return in.batch, in.kind == InputTokenBatch }

func (in EmbeddingInput) Validate() error {
	switch in.kind {
	case InputNone:
		return fmt.Errorf("%w: embeddings input can not be null", ErrInvalidRequest)
	case InputText:
		return nil
	}
	n := in.Len()
	if n == 0 {
		return fmt.Errorf("%w: embeddings input list can not be empty", ErrInvalidRequest)
	}
	if n > MaxEmbeddingInputs {
		return fmt.Errorf("%w: embeddings input list must be %d elements or less, got %d", ErrInvalidRequest, MaxEmbeddingInputs, n)
	}
	return nil
}

func (in EmbeddingInput) MarshalJSON() ([]byte, error) {
	switch in.kind {
	case InputText:
		return json.Marshal(in.text)
	case InputTexts:
		return json.Marshal(in.texts)
	case InputTokens:
		return json.Marshal(in.tokens)
	case InputTokenBatch:
		return json.Marshal(in.batch)
	default:
		return []byte("null"), nil
	}
}

func (in *EmbeddingInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*in = EmbeddingInput{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*in = TextInput(s)
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return fmt.Errorf("embeddings input: %w", err)
	}
	var first byte
	if len(elems) > 0 {
		if e := bytes.TrimSpace(elems[0]); len(e) > 0 {
			first = e[0]
		}
	}
	switch first {
	case 0, '"':
		var texts []string
		if err := json.Unmarshal(b, &texts); err != nil {
			return fmt.Errorf("embeddings input: %w", err)
		}
		*in = EmbeddingInput{kind: InputTexts, texts: texts}
	case '[':
		var batch [][]int
		if err := json.Unmarshal(b, &batch); err != nil {
			return fmt.Errorf("embeddings input: %w", err)
		}
		*in = EmbeddingInput{kind: InputTokenBatch, batch: batch}
	default:
		var toks []int
		if err := json.Unmarshal(b, &toks); err != nil {
			return fmt.Errorf("embeddings input: %w", err)
		}
		*in = EmbeddingInput{kind: InputTokens, tokens: toks}
	}
	return nil
}

// EmbeddingRequest is the body of POST /v1/embeddings.
type EmbeddingRequest struct {
	Input          EmbeddingInput `json:"input"`
	Model          string         `json:"model"`
	EncodingFormat string         `json:"encoding_format,omitempty"`
}

type EmbeddingOption func(*EmbeddingRequest)

func WithEmbeddingModel(model string) EmbeddingOption {
	return func(r *EmbeddingRequest) { r.Model = model }
}

func WithEncodingFormat(format string) EmbeddingOption {
	return func(r *EmbeddingRequest) { r.EncodingFormat = format }
}

// NewEmbeddingRequest builds a validated request with model "mistral-embed"
// and encoding format "float" unless overridden.
func NewEmbeddingRequest(input EmbeddingInput, opts ...EmbeddingOption) (EmbeddingRequest, error) {
	req := EmbeddingRequest{
		Input:          input,
		Model:          DefaultEmbeddingModel,
		EncodingFormat: DefaultEncodingFormat,
	}
	for _, o := range opts {
		if o != nil {
			o(&req)
		}
	}
	if err := req.Validate(); err != nil {
		return EmbeddingRequest{}, err
	}
	return req, nil
}

func (r EmbeddingRequest) Validate() error { return r.Input.Validate() }

type EmbeddingList struct {
	Object string      `json:"object,omitempty"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  *Usage      `json:"usage,omitempty"`
}

type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
	Object    string    `json:"object,omitempty"`
}

// Vectors returns the embedding vectors ordered by Index.
func (l EmbeddingList) Vectors() [][]float64 {
	data := slices.Clone(l.Data)
	slices.SortStableFunc(data, func(a, b Embedding) int { return cmp.Compare(a.Index, b.Index) })
	out := make([][]float64, len(data))
	for i, e := range data {
		out[i] = e.Embedding
	}
	return out
}
