package pdpj

import "strings"

// Page is one page of a paginated PDPJ search response.
type Page struct {
	Total       int       `json:"totalRegistros"`
	Content     []Process `json:"content"`
	SearchAfter []any     `json:"searchAfter,omitempty"`
}

// Process is a single case record as returned by the search and detail
// endpoints. Field names follow the PDPJ wire format.
type Process struct {
	ID             string       `json:"id,omitempty"`
	Number         string       `json:"numeroProcesso"`
	TribunalCode   string       `json:"siglaTribunal,omitempty"`
	UpdatedAt      string       `json:"dataHoraAtualizacao,omitempty"`
	LastMovementAt string       `json:"dataHoraUltimoMovimento,omitempty"`
	FirstFilingAt  string       `json:"dataHoraPrimeiroAjuizamento,omitempty"`
	Sort           []any        `json:"sort,omitempty"`
	Proceedings    []Proceeding `json:"tramitacoes,omitempty"`
}

// Proceeding is one tramitation of a process within a court.
type Proceeding struct {
	Classes        []ClassCode `json:"classe,omitempty"`
	Subjects       []ClassCode `json:"assunto,omitempty"`
	Parties        []Party     `json:"partes,omitempty"`
	Movements      []Movement  `json:"movimentos,omitempty"`
	LastMovement   *Movement   `json:"ultimoMovimento,omitempty"`
	Amount         *float64    `json:"valorAcao,omitempty"`
	Court          *Court      `json:"orgaoJulgador,omitempty"`
	Degree         string      `json:"instancia,omitempty"`
	FiledAt        string      `json:"dataHoraAjuizamento,omitempty"`
	DistributedAt  string      `json:"dataHoraUltimaDistribuicao,omitempty"`
	FirstFiledAt   string      `json:"dataHoraPrimeiroAjuizamento,omitempty"`
}

// ClassCode is a coded case classification (class or subject).
type ClassCode struct {
	Code        int    `json:"codigo"`
	Description string `json:"descricao"`
	Hierarchy   string `json:"hierarquia,omitempty"`
}

// Party is one litigant of a proceeding.
type Party struct {
	Name      string          `json:"nome"`
	Side      string          `json:"polo"`
	Kind      string          `json:"tipoParte,omitempty"`
	Documents []PartyDocument `json:"documentosPrincipais,omitempty"`
}

// PartyDocument is an identifier attached to a party.
type PartyDocument struct {
	Number string `json:"numero"`
}

// Movement is a docket entry.
type Movement struct {
	Description string `json:"descricao"`
	At          string `json:"dataHora,omitempty"`
}

// Court identifies the adjudicating body.
type Court struct {
	Name string `json:"nome"`
}

// Party sides as used by the PDPJ wire format.
const (
	SideClaimant   = "ATIVO"
	SideRespondent = "PASSIVO"
)

// HasClass reports whether any proceeding carries the given class code.
func (p Process) HasClass(code int) bool {
	for _, t := range p.Proceedings {
		for _, c := range t.Classes {
			if c.Code == code {
				return true
			}
		}
	}
	return false
}

// DocumentOnSide reports whether the normalized document number appears on
// the given side (SideClaimant or SideRespondent) of any proceeding.
func (p Process) DocumentOnSide(doc, side string) bool {
	if doc == "" {
		return false
	}
	for _, t := range p.Proceedings {
		if t.documentOnSide(doc, side) {
			return true
		}
	}
	return false
}

func (t Proceeding) documentOnSide(doc, side string) bool {
	for _, party := range t.Parties {
		if !strings.EqualFold(party.Side, side) {
			continue
		}
		for _, pd := range party.Documents {
			if digitsOf(pd.Number) == doc {
				return true
			}
		}
	}
	return false
}

// PartyNames returns the names of all parties on the given side, uppercased.
func (p Process) PartyNames(side string) []string {
	var names []string
	for _, t := range p.Proceedings {
		for _, party := range t.Parties {
			if strings.EqualFold(party.Side, side) {
				names = append(names, strings.ToUpper(strings.TrimSpace(party.Name)))
			}
		}
	}
	return names
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
