package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lgc202/go-mistral/transcription"
)

func newTranscribeCmd(a *app) *cobra.Command {
	var req transcription.Request
	var format string
	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			c, err := a.transcriber()
			if err != nil {
				return err
			}
			req.Audio = f
			req.FileName = args[0]
			req.Format = transcription.ResponseFormat(format)
			tr, err := c.Transcribe(cmd.Context(), req)
			if err != nil {
				return err
			}
			a.logger.Debug("transcription metadata", "request_id", tr.Metadata.RequestID,
				"requests_remaining", tr.Metadata.RateLimit.RequestsRemaining)
			return renderWire(a.stdout, a.output, tr, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, tr.Text)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Language, "language", "", "ISO-639-1 language of the audio")
	f.StringVar(&req.Prompt, "prompt", "", "text to guide the transcription style")
	f.StringVar(&req.Model, "model", "", "model id (default from transcription.model)")
	f.StringVar(&format, "format", string(transcription.FormatJSON), "response format (json, text, srt, verbose_json, vtt)")
	return cmd
}
