package importer

import (
	"encoding/csv"
	"io"
	"strings"
)

// CSVSource streams a CSV statement row by row. The first line is the
// header; its names are folded to snake case so "Payee Name" and
// "payee_name" address the same field.
type CSVSource struct {
	reader *csv.Reader
	header []string
	row    int
	done   bool
}

func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return &CSVSource{reader: cr}
}

func (s *CSVSource) Next() (map[string]string, int, bool, error) {
	if s.done {
		return nil, s.row, true, nil
	}

	if s.header == nil {
		record, err := s.reader.Read()
		if err == io.EOF {
			s.done = true
			return nil, 0, true, nil
		}
		if err != nil {
			return nil, 0, false, err
		}
		s.header = make([]string, len(record))
		for i, name := range record {
			s.header[i] = normalizeHeader(name)
		}
	}

	record, err := s.reader.Read()
	if err == io.EOF {
		s.done = true
		return nil, s.row, true, nil
	}
	if err != nil {
		return nil, s.row + 1, false, err
	}

	s.row++
	raw := make(map[string]string, len(s.header))
	for i, name := range s.header {
		if i < len(record) {
			raw[name] = record[i]
		}
	}
	return raw, s.row, false, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}
