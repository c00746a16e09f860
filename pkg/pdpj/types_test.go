package pdpj

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDecodesWireFormat(t *testing.T) {
	raw := `{
		"numeroProcesso": "0000001-02.2023.8.17.0001",
		"siglaTribunal": "TJPE",
		"tramitacoes": [{
			"classe": [{"codigo": 1116, "descricao": "Execução Fiscal"}],
			"partes": [{
				"nome": "Estado de Pernambuco",
				"polo": "ATIVO",
				"documentosPrincipais": [{"numero": "11.222.333/0001-81"}]
			}],
			"valorAcao": 15000.5
		}]
	}`
	var p Process
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "0000001-02.2023.8.17.0001", p.Number)
	assert.True(t, p.HasClass(1116))
	assert.False(t, p.HasClass(7))
	require.NotNil(t, p.Proceedings[0].Amount)
	assert.Equal(t, 15000.5, *p.Proceedings[0].Amount)
}

func TestDocumentOnSide(t *testing.T) {
	p := Process{Proceedings: []Proceeding{{
		Parties: []Party{
			{
				Name:      "ACME LTDA",
				Side:      "ATIVO",
				Documents: []PartyDocument{{Number: "11.222.333/0001-81"}},
			},
			{
				Name:      "Fulano",
				Side:      "passivo",
				Documents: []PartyDocument{{Number: "529.982.247-25"}},
			},
		},
	}}}

	assert.True(t, p.DocumentOnSide("11222333000181", SideClaimant))
	assert.False(t, p.DocumentOnSide("11222333000181", SideRespondent))
	// side comparison is case-insensitive
	assert.True(t, p.DocumentOnSide("52998224725", SideRespondent))
	assert.False(t, p.DocumentOnSide("", SideClaimant))
}

func TestPartyNames(t *testing.T) {
	p := Process{Proceedings: []Proceeding{{
		Parties: []Party{
			{Name: " Estado de Pernambuco ", Side: "ATIVO"},
			{Name: "ACME LTDA", Side: "PASSIVO"},
		},
	}}}

	assert.Equal(t, []string{"ESTADO DE PERNAMBUCO"}, p.PartyNames(SideClaimant))
	assert.Equal(t, []string{"ACME LTDA"}, p.PartyNames(SideRespondent))
}
