package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxLineBytes bounds a single JSON Lines record
const maxLineBytes = 4 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseCSV reads a header row followed by data rows. Empty cells are
// left out of the record so they read as absent.
func parseCSV(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
	}

	var rows []map[string]any
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(header))
		for i, cell := range line {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			row[header[i]] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseJSON decodes numbers as json.Number so integers survive exactly
func parseJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}

	items, err := unwrap(doc)
	if err != nil {
		return nil, err
	}
	return objects(items)
}

func parseJSONL(r io.Reader) ([]map[string]any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var rows []map[string]any
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("line %d: expected an object, got %T", line, v)
		}
		rows = append(rows, obj)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func parseYAML(r io.Reader) ([]map[string]any, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty document")
		}
		return nil, err
	}

	items, err := unwrap(doc)
	if err != nil {
		return nil, err
	}
	return objects(items)
}

func objects(items []any) ([]map[string]any, error) {
	rows := make([]map[string]any, len(items))
	for i, item := range items {
		obj, err := asObject(i, item)
		if err != nil {
			return nil, err
		}
		rows[i] = obj
	}
	return rows, nil
}
