package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lgc202/go-mistral/config"
	"github.com/lgc202/go-mistral/internal/logger"
	"github.com/lgc202/go-mistral/mistralai"
	"github.com/lgc202/go-mistral/transcription"
)

// app carries state shared by all subcommands.
type app struct {
	cfgFile  string
	logLevel string
	output   string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	props  config.Properties
	logger *slog.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "mistral",
		Short:         "Mistral AI command line client",
		Long:          `Chat, embed and transcribe from the command line. Settings come from --config and MISTRAL_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	pf.StringVarP(&a.output, "output", "o", formatText, "output format (text, json, yaml)")

	root.AddCommand(
		newChatCmd(a),
		newEmbedCmd(a),
		newTranscribeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadProperties(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.props = cfg.Get()

	level := a.props.Log.Level
	if cmd.Flags().Changed("log-level") {
		level = a.logLevel
	}
	a.logger = logger.New(a.stderr, level)
	a.logger.Debug("config loaded", "path", cfg.Path(), "base_url", a.props.BaseURL, "model", a.props.Chat.Model)
	return nil
}

func (a *app) client() (*mistralai.Client, error) {
	if a.props.APIKey == "" {
		a.logger.Warn("no API key configured; set MISTRAL_API_KEY or api_key")
	}
	return mistralai.New(a.props.ClientConfig(a.logger))
}

func (a *app) transcriber() (*transcription.Client, error) {
	return transcription.New(a.props.TranscriptionConfig(a.logger))
}
