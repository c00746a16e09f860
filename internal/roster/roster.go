// Package roster loads the entities to collect from an XLSX workbook.
package roster

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/dividalabs/litigio-cli/internal/collect"
	"github.com/dividalabs/litigio-cli/internal/docid"
)

// Column aliases accepted in the header row, lowercased.
var (
	idAliases   = []string{"posicao", "id", "posição"}
	nameAliases = []string{"nome_estoque", "nome", "name"}
	docAliases  = []string{"nr_documento", "documento", "document", "cpf_cnpj"}
)

// Options configures workbook parsing.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Load reads entities from the first sheet of the workbook at path. The
// header row maps columns by alias; rows without a name and document are
// skipped. Documents are normalized on load.
func Load(path string, opts Options) ([]collect.Entity, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open workbook")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("roster: sheet %q is empty", sheet.Name)
	}

	header := rowToStrings(sheet.Rows[0])
	idCol := findColumn(header, idAliases)
	nameCol := findColumn(header, nameAliases)
	docCol := findColumn(header, docAliases)
	if nameCol < 0 && docCol < 0 {
		return nil, eris.Errorf("roster: no name or document column in header %v", header)
	}

	var entities []collect.Entity
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		ent := collect.Entity{
			ID:       cellAt(cells, idCol),
			Name:     strings.TrimSpace(cellAt(cells, nameCol)),
			Document: docid.Normalize(cellAt(cells, docCol)),
		}
		if ent.Name == "" && ent.Document == "" {
			continue
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("roster: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("roster: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
