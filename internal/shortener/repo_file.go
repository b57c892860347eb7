package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"

	domainsTable = "domains"
	linksTable   = "links"

	// LogsDirName is the directory under the storage dir holding access logs.
	LogsDirName = "logs"
)

// LogsDir returns the access log root for a storage directory.
func LogsDir(storageDir string) string {
	return filepath.Join(storageDir, LogsDirName)
}

// FileSource reads domains and links from whole-file documents in a directory.
type FileSource struct {
	dir    string
	format string
}

// NewFileSource returns a Source over dir. An empty or unknown format falls back to JSON.
func NewFileSource(dir, format string) *FileSource {
	if format != FormatYAML {
		format = FormatJSON
	}
	return &FileSource{dir: dir, format: format}
}

func (s *FileSource) tablePath(table string) string {
	return filepath.Join(s.dir, table+"."+s.format)
}

// Init creates the storage directory, empty tables and the logs directory.
// Existing tables are never touched.
func (s *FileSource) Init(_ context.Context) error {
	const op = "shortener.file.Init"

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errx.E(op, errx.IO, err)
	}
	for _, table := range []string{domainsTable, linksTable} {
		if err := createEmptyTable(s.tablePath(table)); err != nil {
			return errx.E(op, errx.IO, err)
		}
	}
	if err := os.MkdirAll(LogsDir(s.dir), 0o755); err != nil {
		return errx.E(op, errx.IO, err)
	}
	return nil
}

func createEmptyTable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	// "[]" is an empty sequence in both JSON and YAML.
	if _, err := f.WriteString("[]\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *FileSource) Domains(_ context.Context) ([]Domain, error) {
	const op = "shortener.file.Domains"

	domains, err := readTable[Domain](s.tablePath(domainsTable), s.format)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return domains, nil
}

func (s *FileSource) Links(_ context.Context) ([]Link, error) {
	const op = "shortener.file.Links"

	links, err := readTable[Link](s.tablePath(linksTable), s.format)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

// readTable fails on unreadable files (Unavailable) and on content that does
// not decode as a sequence of T (Corrupt). An empty or null file is corrupt,
// not an empty table.
func readTable[T any](path, format string) ([]T, error) {
	const op = "shortener.file.readTable"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errx.E(op, errx.Corrupt, fmt.Errorf("%s: table is empty", path))
	}

	var rows []T
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &rows)
	default:
		err = decodeJSON(data, &rows)
	}
	if err != nil {
		return nil, errx.E(op, errx.Corrupt, fmt.Errorf("%s: %w", path, err))
	}
	// A null document decodes without error but is not a table.
	if rows == nil {
		return nil, errx.E(op, errx.Corrupt, fmt.Errorf("%s: table is not a sequence", path))
	}
	return rows, nil
}

func decodeJSON(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))

	if err := decoder.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
		case errors.As(err, &unmarshalErr):
			return fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
		default:
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	// Ensure there's no additional data after the table
	if decoder.More() {
		return errors.New("table contains trailing data")
	}
	return nil
}
