// Package importer reads the post tracking sheet, exported as XLSX or CSV.
package importer

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// LoadPosts reads a tracking sheet. The first row is a header naming a link
// column and a post name column; without recognizable names the first two
// columns are used. Rows with a blank link are dropped.
func LoadPosts(path string) ([]model.PostImport, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows), nil
}

func parseRows(rows [][]string) []model.PostImport {
	if len(rows) == 0 {
		return nil
	}
	linkCol, nameCol := headerColumns(rows[0])

	posts := make([]model.PostImport, 0, len(rows)-1)
	for _, row := range rows[1:] {
		link := strings.TrimSpace(cell(row, linkCol))
		if link == "" {
			continue
		}
		posts = append(posts, model.PostImport{
			URL:  link,
			Name: strings.TrimSpace(cell(row, nameCol)),
		})
	}
	return posts
}

func headerColumns(header []string) (link, name int) {
	link, name = -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case link < 0 && (strings.Contains(h, "link") || strings.Contains(h, "url")):
			link = i
		case name < 0 && strings.Contains(h, "name"):
			name = i
		}
	}
	if link < 0 {
		link = 0
	}
	if name < 0 {
		name = 1
		if link == 1 {
			name = 0
		}
	}
	return link, name
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("importer: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "importer: read csv row")
		}
		rows = append(rows, rec)
	}
}
