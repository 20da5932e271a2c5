package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// writeFormatted encodes v as indented JSON or YAML.
func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		// Round-trip through JSON so YAML keys follow the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		return eris.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

// openOutput returns stdout or the named file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, f.Close, nil
}
