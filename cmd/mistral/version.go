package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lgc202/go-mistral/version"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information (-o text, json, yaml or short)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if a.output == "short" {
				_, err := fmt.Fprintln(a.stdout, info.ShortString())
				return err
			}
			return render(a.stdout, a.output, info, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, info.Text())
				return err
			})
		},
	}
}
