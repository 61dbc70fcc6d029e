package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Posts")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "posts.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadPosts_XLSX(t *testing.T) {
	path := writeXLSX(t, [][]string{
		{"Post Name", "Date", "Link"},
		{"Launch", "2026-01-02", "https://www.linkedin.com/posts/a"},
		{"No link", "2026-01-03", "  "},
		{"", "", "https://www.linkedin.com/posts/b "},
	})

	posts, err := LoadPosts(path)
	require.NoError(t, err)
	assert.Equal(t, []model.PostImport{
		{URL: "https://www.linkedin.com/posts/a", Name: "Launch"},
		{URL: "https://www.linkedin.com/posts/b"},
	}, posts)
}

func TestLoadPosts_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	data := "link,post name\nhttps://www.linkedin.com/posts/a,\"Q1, recap\"\n,orphan\nhttps://www.linkedin.com/posts/c\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	posts, err := LoadPosts(path)
	require.NoError(t, err)
	assert.Equal(t, []model.PostImport{
		{URL: "https://www.linkedin.com/posts/a", Name: "Q1, recap"},
		{URL: "https://www.linkedin.com/posts/c"},
	}, posts)
}

func TestLoadPosts_Errors(t *testing.T) {
	_, err := LoadPosts("posts.json")
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = LoadPosts(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "importer: open csv")
}

func TestHeaderColumns(t *testing.T) {
	tests := []struct {
		header     []string
		link, name int
	}{
		{[]string{"Link", "Post Name"}, 0, 1},
		{[]string{"Post Name", "URL"}, 1, 0},
		{[]string{"a", "b", "c"}, 0, 1},
		{[]string{"name", "x", "post link"}, 2, 0},
	}
	for _, tt := range tests {
		link, name := headerColumns(tt.header)
		assert.Equal(t, tt.link, link, "%v", tt.header)
		assert.Equal(t, tt.name, name, "%v", tt.header)
	}
}

func TestParseRows_Empty(t *testing.T) {
	assert.Nil(t, parseRows(nil))
	assert.Empty(t, parseRows([][]string{{"link", "name"}}))
}
