package collect

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dividalabs/litigio-cli/internal/cache"
	"github.com/dividalabs/litigio-cli/internal/docid"
	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// Searcher is the slice of the API client the fan-out needs.
type Searcher interface {
	Search(ctx context.Context, q pdpj.Query, opts pdpj.SearchOptions) (*pdpj.SearchResult, error)
	SearchByName(ctx context.Context, name string, opts pdpj.SearchOptions) (*pdpj.SearchResult, error)
}

// Search origins recorded against pooled processes.
const (
	OriginDocument = "by_document"
	OriginBranch   = "by_branch"
	OriginName     = "by_name"
)

// SearchReport summarizes one entity's fan-out.
type SearchReport struct {
	Pool  *Pool
	Pages int
	// Total is the largest API-reported total across strategies.
	Total     int
	Oversized bool
	Partial   bool
	// Branches lists the branch CNPJs actually searched.
	Branches []string
}

// FanoutOptions tunes the per-entity strategy fan-out.
type FanoutOptions struct {
	ClassID            string
	MaxPages           int
	MaxItems           int
	OversizedThreshold int
	MaxBranches        int
	ByDocument         bool
	ByBranches         bool
	ByName             bool
	// CheckpointDir is the entity's checkpoint root; strategies write to
	// subdirectories beneath it.
	CheckpointDir string
	// OnPage is forwarded to every strategy's pager.
	OnPage func(page, count int)
}

// Fanout runs every enabled search strategy for one entity and pools the
// deduplicated results. Strategies that cannot apply (branch enumeration on
// a CPF, name search without a name) are skipped silently.
func Fanout(ctx context.Context, sc Searcher, caches *cache.Store, ent Entity, opts FanoutOptions) (*SearchReport, error) {
	rep := &SearchReport{Pool: NewPool()}
	doc := docid.Normalize(ent.Document)

	if opts.ByDocument && doc != "" {
		if err := searchDocument(ctx, sc, rep, doc, opts); err != nil {
			return nil, err
		}
	}
	if opts.ByBranches && docid.DetectKind(doc) == docid.KindCNPJ {
		if err := searchBranches(ctx, sc, caches, rep, doc, opts); err != nil {
			return nil, err
		}
	}
	if opts.ByName && ent.Name != "" {
		if err := searchName(ctx, sc, rep, ent.Name, opts); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func searchDocument(ctx context.Context, sc Searcher, rep *SearchReport, doc string, opts FanoutOptions) error {
	res, err := sc.Search(ctx, pdpj.Query{
		Field:   pdpj.FieldDocument,
		Value:   doc,
		ClassID: opts.ClassID,
	}, searchOpts(opts, filepath.Join(OriginDocument, "pages")))
	if err != nil {
		return err
	}
	rep.Pool.Add(OriginDocument, res.Items)
	mergeReport(rep, res)
	return nil
}

// searchBranches enumerates sibling branch CNPJs starting at ordinal 0002
// (0001 is the headquarters already covered by the document search). A
// branch whose first page comes back empty is remembered as nonexistent and
// never searched again.
func searchBranches(ctx context.Context, sc Searcher, caches *cache.Store, rep *SearchReport, doc string, opts FanoutOptions) error {
	root := docid.Root(doc)
	if root == "" {
		return nil
	}
	for i := 0; i < opts.MaxBranches; i++ {
		branch := fmt.Sprintf("%04d", i+2)
		cnpj, err := docid.BranchCNPJ(root, branch)
		if err != nil {
			return err
		}
		if cnpj == doc {
			continue
		}
		if caches.IsMissingBranch(cnpj) {
			zap.L().Debug("branch known missing, skipping", zap.String("cnpj", cnpj))
			continue
		}
		res, err := sc.Search(ctx, pdpj.Query{
			Field:   pdpj.FieldDocument,
			Value:   cnpj,
			ClassID: opts.ClassID,
		}, searchOpts(opts, filepath.Join(OriginBranch, cnpj, "pages")))
		if err != nil {
			return err
		}
		rep.Branches = append(rep.Branches, cnpj)
		if len(res.Items) == 0 && !res.Partial {
			caches.MarkMissingBranch(cnpj)
		}
		rep.Pool.Add(OriginBranch, res.Items)
		mergeReport(rep, res)
	}
	return nil
}

func searchName(ctx context.Context, sc Searcher, rep *SearchReport, name string, opts FanoutOptions) error {
	res, err := sc.SearchByName(ctx, name, searchOpts(opts, OriginName))
	if err != nil {
		return err
	}
	rep.Pool.Add(OriginName, res.Items)
	mergeReport(rep, res)
	return nil
}

func searchOpts(opts FanoutOptions, sub string) pdpj.SearchOptions {
	so := pdpj.SearchOptions{
		MaxPages:           opts.MaxPages,
		MaxItems:           opts.MaxItems,
		OversizedThreshold: opts.OversizedThreshold,
		OnPage:             opts.OnPage,
	}
	if opts.CheckpointDir != "" {
		so.CheckpointDir = filepath.Join(opts.CheckpointDir, sub)
	}
	return so
}

func mergeReport(rep *SearchReport, res *pdpj.SearchResult) {
	rep.Pages += res.Pages
	if res.Total > rep.Total {
		rep.Total = res.Total
	}
	rep.Oversized = rep.Oversized || res.Oversized
	rep.Partial = rep.Partial || res.Partial
}
