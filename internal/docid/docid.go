// Package docid normalizes and validates the Brazilian taxpayer identifiers
// (CPF for people, CNPJ for organizations) used to key judicial searches.
// A CNPJ decomposes into an 8-digit root shared by all branch offices and a
// 4-digit branch ordinal, which lets the collector enumerate branches.
package docid

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies the document type of a normalized identifier.
type Kind string

const (
	KindCPF     Kind = "CPF"
	KindCNPJ    Kind = "CNPJ"
	KindInvalid Kind = ""
)

// Normalize strips non-digits and zero-pads to 11 (CPF) or 14 (CNPJ) digits.
// Inputs longer than 14 digits keep the trailing 14.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) <= 11 {
		return leftPad(digits, 11)
	}
	if len(digits) > 14 {
		digits = digits[len(digits)-14:]
	}
	return leftPad(digits, 14)
}

// ValidCPF checks the two CPF verification digits.
func ValidCPF(cpf string) bool {
	cpf = Normalize(cpf)
	if len(cpf) != 11 || allSame(cpf) {
		return false
	}
	d1 := cpfDigit(cpf, 9)
	d2 := cpfDigit(cpf, 10)
	return cpf[9] == d1 && cpf[10] == d2
}

func cpfDigit(s string, n int) byte {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(s[i]-'0') * (n + 1 - i)
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidCNPJ checks the two CNPJ verification digits.
func ValidCNPJ(cnpj string) bool {
	cnpj = Normalize(cnpj)
	if len(cnpj) != 14 || allSame(cnpj) {
		return false
	}
	d1 := cnpjDigit(cnpj, 12)
	d2 := cnpjDigit(cnpj, 13)
	return cnpj[12] == d1 && cnpj[13] == d2
}

func cnpjDigit(s string, n int) byte {
	weights := cnpjWeights
	if n == 12 {
		weights = cnpjWeights[1:]
	}
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(s[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

// DetectKind normalizes raw and returns its document kind, or KindInvalid
// when neither check-digit set verifies.
func DetectKind(raw string) Kind {
	d := Normalize(raw)
	switch {
	case len(d) == 14 && ValidCNPJ(d):
		return KindCNPJ
	case len(d) == 11 && ValidCPF(d):
		return KindCPF
	default:
		return KindInvalid
	}
}

// Root returns the 8-digit CNPJ root, or "" for anything that is not a
// full 14-digit identifier.
func Root(doc string) string {
	if len(doc) != 14 {
		return ""
	}
	return doc[:8]
}

// BranchCNPJ builds a full 14-digit CNPJ from an 8-digit root and a 4-digit
// branch ordinal, recomputing both verification digits.
func BranchCNPJ(root, branch string) (string, error) {
	if len(root) != 8 || !numeric(root) {
		return "", eris.Errorf("docid: invalid cnpj root %q", root)
	}
	if len(branch) != 4 || !numeric(branch) {
		return "", eris.Errorf("docid: invalid branch ordinal %q", branch)
	}
	base := root + branch
	d1 := cnpjDigit(base, 12)
	d2 := cnpjDigit(base+string(d1), 13)
	return base + string(d1) + string(d2), nil
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
