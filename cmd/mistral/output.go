package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return text(w)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// renderWire is render for API values: YAML keys follow the JSON wire names.
func renderWire(w io.Writer, format string, v any, text func(io.Writer) error) error {
	if format == formatYAML {
		g, err := wire(v)
		if err != nil {
			return err
		}
		v = g
	}
	return render(w, format, v, text)
}

// wire re-shapes v through its JSON encoding so YAML output uses the
// API field names.
func wire(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newTable() *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 80
	t.Separator = "  "
	return t
}
