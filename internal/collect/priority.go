package collect

import "github.com/dividalabs/litigio-cli/pkg/pdpj"

// Priority tiers, highest first. Fiscal executions outrank cases where the
// entity is the claimant, which outrank everything else.
const (
	TierFiscal   = "exec_fiscal"
	TierClaimant = "polo_ativo"
	TierOther    = "outros"
)

// Selection is a pool partitioned into priority tiers, each tier keeping
// first-discovery order.
type Selection struct {
	Fiscal   []pdpj.Process
	Claimant []pdpj.Process
	Other    []pdpj.Process

	tiers map[string]string
}

// Classify partitions items into tiers for the entity identified by the
// normalized document. A process lands in exactly one tier, the highest
// that matches.
func Classify(items []pdpj.Process, doc string, fiscalClass int) *Selection {
	sel := &Selection{tiers: make(map[string]string, len(items))}
	for _, item := range items {
		switch {
		case item.HasClass(fiscalClass):
			sel.Fiscal = append(sel.Fiscal, item)
			sel.tiers[item.Number] = TierFiscal
		case item.DocumentOnSide(doc, pdpj.SideClaimant):
			sel.Claimant = append(sel.Claimant, item)
			sel.tiers[item.Number] = TierClaimant
		default:
			sel.Other = append(sel.Other, item)
			sel.tiers[item.Number] = TierOther
		}
	}
	return sel
}

// Tier returns the tier a classified process landed in, or "" if unknown.
func (s *Selection) Tier(number string) string {
	return s.tiers[number]
}

// Apply picks the download set: up to maxPerTier from each tier in priority
// order, capped at maxPerEntity overall. Zero caps mean unlimited.
func (s *Selection) Apply(maxPerTier, maxPerEntity int) []pdpj.Process {
	var picked []pdpj.Process
	for _, tier := range [][]pdpj.Process{s.Fiscal, s.Claimant, s.Other} {
		taken := 0
		for _, item := range tier {
			if maxPerEntity > 0 && len(picked) >= maxPerEntity {
				return picked
			}
			if maxPerTier > 0 && taken >= maxPerTier {
				break
			}
			picked = append(picked, item)
			taken++
		}
	}
	return picked
}
