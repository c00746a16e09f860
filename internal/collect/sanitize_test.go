package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"ACME LTDA":              "ACME_LTDA",
		"Construções João & Cia": "Construcoes_Joao_Cia",
		"a/b\\c":                 "a_b_c",
		"  spaced   out  ":       "spaced_out",
		"":                       "unnamed",
		"***":                    "unnamed",
		"nome-com.pontos":        "nome-com.pontos",
	}
	for in, want := range cases {
		assert.Equal(t, want, FileName(in), "input %q", in)
	}
}
