package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/cellstorm/internal/model"
)

// Document is a test suite loaded into the model.
type Document struct {
	Name string
	// Path is empty for the sample document.
	Path string
	Node model.NodeID
}

// ParseDocument reads a suite file: a "suite <name>" line followed by one
// assertion expression per line. Blank lines and lines starting with #
// are skipped.
//
//	suite arithmetic
//	1 + 2 == 3
//	let x = 4 in x * x == 16
func ParseDocument(r io.Reader) (name string, assertions []string, err error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name == "" {
			rest, ok := strings.CutPrefix(line, "suite ")
			if !ok || strings.TrimSpace(rest) == "" {
				return "", nil, fmt.Errorf("line %d: %w", lineNo, ErrEmptyDocument)
			}
			name = strings.TrimSpace(rest)
			continue
		}
		assertions = append(assertions, line)
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	if name == "" {
		return "", nil, ErrEmptyDocument
	}
	return name, assertions, nil
}

// LoadDocument parses the suite file at path into the model.
func (app *Application) LoadDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	name, assertions, err := ParseDocument(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	id, err := app.lang.NewSuite(app.model, name, assertions...)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	app.logger.Info("loaded %s as %s", path, id)
	return Document{Name: name, Path: path, Node: id}, nil
}

func (app *Application) loadSample() (Document, error) {
	id, err := app.lang.Sample(app.model)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: "arithmetic", Node: id}, nil
}

// Document finds a loaded document by name, path or node ID. An empty key
// selects the first document.
func (app *Application) Document(key string) (Document, error) {
	if len(app.docs) == 0 {
		return Document{}, ErrNoDocument
	}
	if key == "" {
		return app.docs[0], nil
	}
	for _, d := range app.docs {
		if d.Name == key || d.Path == key || string(d.Node) == key {
			return d, nil
		}
	}
	return Document{}, fmt.Errorf("%w: %s", ErrNoDocument, key)
}
