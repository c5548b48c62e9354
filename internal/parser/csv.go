package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// CSVParser handles CSV files. Rows are rendered as pipe tables of at most
// BatchRows data rows, each headed by a bold row-range line.
type CSVParser struct {
	BatchRows int
}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	out := &doctree.Source{Title: stem(filename)}
	if len(records) == 0 {
		return out, nil
	}

	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		out.Text = pipeTable([][]string{headers})
		return out, nil
	}

	batch := p.BatchRows
	if batch <= 0 {
		batch = 20
	}
	var w blockWriter
	for i := 0; i < len(dataRows); i += batch {
		end := min(i+batch, len(dataRows))
		rows := append([][]string{headers}, dataRows[i:end]...)
		w.add(fmt.Sprintf("**Rows %d-%d**", i+2, end+1)) // 1-indexed, after the header
		w.add(pipeTable(rows))
	}
	out.Text = w.String()
	return out, nil
}
