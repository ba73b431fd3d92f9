package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lgc202/go-mistral/mistralai"
)

type chatOptions struct {
	stream      bool
	system      string
	model       string
	temperature float64
	maxTokens   int
	jsonMode    bool
}

func newChatCmd(a *app) *cobra.Command {
	var o chatOptions
	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Send a chat completion request",
		Long:  `Send a single user prompt, read from the arguments or from stdin when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(a.stdin, args)
			if err != nil {
				return err
			}
			return runChat(cmd, a, o, prompt)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.stream, "stream", false, "stream tokens as they are generated")
	f.StringVar(&o.system, "system", "", "system message sent before the prompt")
	f.StringVar(&o.model, "model", "", "model id (default from chat.model)")
	f.Float64Var(&o.temperature, "temperature", mistralai.DefaultTemperature, "sampling temperature")
	f.IntVar(&o.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	f.BoolVar(&o.jsonMode, "json", false, "ask the model for a JSON object")
	return cmd
}

func runChat(cmd *cobra.Command, a *app, o chatOptions, prompt string) error {
	c, err := a.client()
	if err != nil {
		return err
	}

	var msgs []mistralai.Message
	if o.system != "" {
		msgs = append(msgs, mistralai.SystemMessage(o.system))
	}
	msgs = append(msgs, mistralai.UserMessage(prompt))

	opts := a.props.ChatOptions()
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, mistralai.WithTemperature(o.temperature))
	}
	if o.maxTokens > 0 {
		opts = append(opts, mistralai.WithMaxTokens(o.maxTokens))
	}
	if o.jsonMode {
		opts = append(opts, mistralai.WithResponseFormat(mistralai.ResponseFormatJSONObject))
	}
	opts = append(opts, mistralai.WithStream(o.stream))
	req := mistralai.NewChatCompletionRequest(o.model, msgs, opts...)

	ctx := cmd.Context()
	if !o.stream {
		resp, err := c.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		return renderWire(a.stdout, a.output, resp, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, resp.Content())
			return err
		})
	}

	s, err := c.ChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	if a.output != formatText {
		resp, err := mistralai.DrainStream(s)
		if err != nil {
			return err
		}
		return renderWire(a.stdout, a.output, resp, nil)
	}

	for chunk, err := range s.Chunks() {
		if err != nil {
			return err
		}
		if _, err := io.WriteString(a.stdout, chunk.Content()); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(a.stdout)
	return err
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}
	return prompt, nil
}
