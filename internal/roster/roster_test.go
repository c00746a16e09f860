package roster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoad(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Sheet1": {
			{"posicao", "nome_estoque", "nr_documento"},
			{"1", "ACME LTDA", "11.222.333/0001-81"},
			{"2", "João da Silva", "529.982.247-25"},
			{"", "", ""},
		},
	})

	entities, err := Load(path, Options{})
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, "1", entities[0].ID)
	assert.Equal(t, "ACME LTDA", entities[0].Name)
	assert.Equal(t, "11222333000181", entities[0].Document)
	assert.Equal(t, "52998224725", entities[1].Document)
}

func TestLoadColumnAliases(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Sheet1": {
			{"ID", "Name", "Document"},
			{"7", "Beta SA", "52998224725"},
		},
	})

	entities, err := Load(path, Options{})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "7", entities[0].ID)
	assert.Equal(t, "Beta SA", entities[0].Name)
}

func TestLoadSheetName(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Ignore": {{"nome"}, {"Wrong"}},
		"Target": {{"nome"}, {"Right"}},
	})

	entities, err := Load(path, Options{SheetName: "Target"})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Right", entities[0].Name)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xlsx"), Options{})
	require.Error(t, err)

	path := createWorkbook(t, map[string][][]string{
		"Sheet1": {{"unrelated", "columns"}, {"a", "b"}},
	})
	_, err = Load(path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name or document column")

	path = createWorkbook(t, map[string][][]string{"Sheet1": {{"nome"}}})
	_, err = Load(path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
