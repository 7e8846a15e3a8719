package main

import (
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// readJSONFile decodes a JSON file into v; "-" reads stdin.
func readJSONFile(path string, v any) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return nil, eris.New("an input file is required")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// readOptional reads a file when a path is given and returns nil otherwise.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return readInput(path)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return eris.Errorf("unsupported format %q (want table or json)", format)
	}
}
