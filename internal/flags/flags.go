// Package flags derives review flags from a collected process: markers a
// human analyst scans before valuing the case. The flag table is static;
// adding a flag means adding a row here.
package flags

import (
	"strings"

	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// Flag is one row of the static flag table.
type Flag struct {
	Key         string
	Label       string
	Description string
	Color       string
	Predicate   func(pdpj.Process) bool
}

// Result is one evaluated flag.
type Result struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Matched bool   `json:"matched"`
}

const fiscalExecutionClass = 1116

var stateTerms = []string{
	"ESTADO DE", "ESTADO DO", "ESTADO DA",
	"MUNICIPIO DE", "MUNICIPIO DO", "MUNICIPIO DA",
	"MUNICÍPIO DE", "MUNICÍPIO DO", "MUNICÍPIO DA",
	"FAZENDA PUBLICA", "FAZENDA PÚBLICA",
}

var treasuryTerms = []string{
	"FAZENDA NACIONAL", "UNIAO FEDERAL", "UNIÃO FEDERAL",
	"PROCURADORIA-GERAL DA FAZENDA NACIONAL", "PGFN",
}

var bankTerms = []string{
	"BANCO ", "CAIXA ECONOMICA", "CAIXA ECONÔMICA",
	"BNDES", "FINANCEIRA", "CREDITO", "CRÉDITO",
}

var table = []Flag{
	{
		Key:         "fiscal_execution",
		Label:       "Execução fiscal",
		Description: "The case is a tax enforcement action.",
		Color:       "red",
		Predicate: func(p pdpj.Process) bool {
			return p.HasClass(fiscalExecutionClass)
		},
	},
	{
		Key:         "state_creditor",
		Label:       "Credor estadual ou municipal",
		Description: "A state or municipal body appears as claimant.",
		Color:       "orange",
		Predicate:   claimantMatches(stateTerms),
	},
	{
		Key:         "national_treasury",
		Label:       "Fazenda Nacional",
		Description: "The national treasury appears as claimant.",
		Color:       "red",
		Predicate:   claimantMatches(treasuryTerms),
	},
	{
		Key:         "bank_party",
		Label:       "Instituição financeira",
		Description: "A bank or credit institution is a party.",
		Color:       "yellow",
		Predicate: func(p pdpj.Process) bool {
			return anyPartyMatches(p, pdpj.SideClaimant, bankTerms) ||
				anyPartyMatches(p, pdpj.SideRespondent, bankTerms)
		},
	},
	{
		Key:         "labor_court",
		Label:       "Justiça do Trabalho",
		Description: "The case number belongs to the labor court segment.",
		Color:       "purple",
		Predicate: func(p pdpj.Process) bool {
			return CourtSegment(p.Number) == "5"
		},
	},
	{
		Key:         "annulment",
		Label:       "Anulatória",
		Description: "A movement suggests the debt is under annulment.",
		Color:       "blue",
		Predicate:   movementMatches([]string{"ANULATORIA", "ANULATÓRIA", "ANULACAO", "ANULAÇÃO"}),
	},
}

// Table returns the static flag table.
func Table() []Flag {
	return table
}

// Evaluate runs every flag predicate against the process, in table order.
func Evaluate(p pdpj.Process) []Result {
	out := make([]Result, len(table))
	for i, f := range table {
		out[i] = Result{
			Key:     f.Key,
			Label:   f.Label,
			Color:   f.Color,
			Matched: f.Predicate(p),
		}
	}
	return out
}

// Matched returns only the flags that fired.
func Matched(p pdpj.Process) []Result {
	var out []Result
	for _, r := range Evaluate(p) {
		if r.Matched {
			out = append(out, r)
		}
	}
	return out
}

// CourtSegment extracts the justice-segment digit from a CNJ-formatted
// process number (NNNNNNN-DD.AAAA.J.TR.OOOO). Returns "" for malformed
// numbers. Segment 5 is the labor courts.
func CourtSegment(number string) string {
	parts := strings.Split(number, ".")
	if len(parts) < 5 {
		return ""
	}
	return parts[2]
}

// ExtinctionTerms are movement descriptions that signal a terminated case.
var ExtinctionTerms = []string{
	"EXTINCAO DA EXECUCAO", "EXTINÇÃO DA EXECUÇÃO",
	"ARQUIVADO DEFINITIVAMENTE",
	"BAIXA DEFINITIVA",
	"TRANSITO EM JULGADO", "TRÂNSITO EM JULGADO",
}

// IsExtinct reports whether any movement matches an extinction term.
func IsExtinct(p pdpj.Process) bool {
	return movementMatches(ExtinctionTerms)(p)
}

func claimantMatches(terms []string) func(pdpj.Process) bool {
	return func(p pdpj.Process) bool {
		return anyPartyMatches(p, pdpj.SideClaimant, terms)
	}
}

func anyPartyMatches(p pdpj.Process, side string, terms []string) bool {
	for _, name := range p.PartyNames(side) {
		for _, term := range terms {
			if strings.Contains(name, term) {
				return true
			}
		}
	}
	return false
}

func movementMatches(terms []string) func(pdpj.Process) bool {
	return func(p pdpj.Process) bool {
		for _, t := range p.Proceedings {
			for _, m := range t.Movements {
				desc := strings.ToUpper(m.Description)
				for _, term := range terms {
					if strings.Contains(desc, term) {
						return true
					}
				}
			}
			if t.LastMovement != nil {
				desc := strings.ToUpper(t.LastMovement.Description)
				for _, term := range terms {
					if strings.Contains(desc, term) {
						return true
					}
				}
			}
		}
		return false
	}
}
