package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lgc202/go-mistral/mistralai"
)

func newEmbedCmd(a *app) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Compute embeddings, one vector per argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.props.EmbeddingOptions()
			if model != "" {
				opts = append(opts, mistralai.WithEmbeddingModel(model))
			}
			req, err := mistralai.NewEmbeddingRequest(mistralai.TextsInput(args...), opts...)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			list, err := c.Embeddings(cmd.Context(), req)
			if err != nil {
				return err
			}
			return renderWire(a.stdout, a.output, list, func(w io.Writer) error {
				t := newTable()
				t.AddRow("INDEX", "DIMS", "HEAD")
				for i, v := range list.Vectors() {
					t.AddRow(i, len(v), head(v, 4))
				}
				_, err := fmt.Fprintln(w, t)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "embedding model id (default from embedding.model)")
	return cmd
}

func head(v []float64, n int) string {
	parts := make([]string, 0, n+1)
	for i, x := range v {
		if i == n {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%.4f", x))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
