package query

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/fraudlake/fraudlake/internal/bloom"
	"github.com/fraudlake/fraudlake/internal/catalog"
	"github.com/fraudlake/fraudlake/internal/partition"
	"github.com/fraudlake/fraudlake/internal/storage"
)

// bloomColumns are the columns segments carry bloom filters for.
var bloomColumns = map[string]bool{
	"name_orig": true,
	"name_dest": true,
}

// PruneResult describes the outcome of a pruning pass.
type PruneResult struct {
	Segments         []*catalog.SegmentRecord
	TotalSegments    int
	Phase1Candidates int
	Phase2Candidates int
}

// PrunedCount returns the number of segments eliminated.
func (r *PruneResult) PrunedCount() int {
	return r.TotalSegments - len(r.Segments)
}

// Pruner narrows the segment set for a query in two phases: catalog
// min/max statistics first, then bloom filters from metadata sidecars.
type Pruner struct {
	catalog catalog.Catalog
	store   storage.ObjectStorage

	mu       sync.RWMutex
	sidecars map[string]*partition.MetadataSidecar
	filters  map[string]map[string]*bloom.Filter
}

// NewPruner creates a pruner backed by the given catalog and file store.
func NewPruner(cat catalog.Catalog, store storage.ObjectStorage) *Pruner {
	return &Pruner{
		catalog:  cat,
		store:    store,
		sidecars: make(map[string]*partition.MetadataSidecar),
		filters:  make(map[string]map[string]*bloom.Filter),
	}
}

// Prune returns the segments a query must scan.
func (p *Pruner) Prune(ctx context.Context, q *Query) (*PruneResult, error) {
	total, err := p.catalog.GetSegmentCount(ctx)
	if err != nil {
		return nil, err
	}

	phase1, err := p.catalog.FindSegments(ctx, q.CatalogPredicates())
	if err != nil {
		return nil, err
	}

	// Typed segments whose key fails a tx_type predicate never need a scan.
	kept := phase1[:0]
	for _, rec := range phase1 {
		if SegmentTypeMatches(q, rec) {
			kept = append(kept, rec)
		}
	}
	phase1 = kept

	phase2 := p.bloomPrune(ctx, phase1, q.Predicates)

	return &PruneResult{
		Segments:         phase2,
		TotalSegments:    int(total),
		Phase1Candidates: len(phase1),
		Phase2Candidates: len(phase2),
	}, nil
}

// bloomPrune drops candidates whose bloom filters rule out an equality
// predicate. Any sidecar failure keeps the segment; pruning must never
// produce false negatives.
func (p *Pruner) bloomPrune(ctx context.Context, candidates []*catalog.SegmentRecord, preds []Predicate) []*catalog.SegmentRecord {
	bloomPreds := bloomPredicates(preds)
	if len(bloomPreds) == 0 {
		return candidates
	}

	var result []*catalog.SegmentRecord
	for _, rec := range candidates {
		if p.segmentMayContain(ctx, rec, bloomPreds) {
			result = append(result, rec)
		}
	}
	return result
}

// bloomPredicates selects the predicates bloom filters can answer.
func bloomPredicates(preds []Predicate) []Predicate {
	var result []Predicate
	for _, p := range preds {
		if !bloomColumns[p.Column] {
			continue
		}
		if p.Operator == "=" || p.Operator == "IN" {
			result = append(result, p)
		}
	}
	return result
}

func (p *Pruner) segmentMayContain(ctx context.Context, rec *catalog.SegmentRecord, preds []Predicate) bool {
	for _, pred := range preds {
		filter, err := p.filterFor(ctx, rec, pred.Column)
		if err != nil {
			log.Printf("pruner: sidecar for %s unavailable, keeping segment: %v", rec.SegmentID, err)
			return true
		}
		if filter == nil {
			return true
		}
		if !filterMatches(filter, pred) {
			return false
		}
	}
	return true
}

func filterMatches(f *bloom.Filter, pred Predicate) bool {
	test := func(v interface{}) bool {
		s, ok := v.(string)
		if !ok {
			return true
		}
		return f.Contains([]byte(s))
	}
	if pred.Operator == "IN" {
		for _, v := range pred.Values {
			if test(v) {
				return true
			}
		}
		return false
	}
	return test(pred.Value)
}

// filterFor loads (and caches) the bloom filter for a segment column.
func (p *Pruner) filterFor(ctx context.Context, rec *catalog.SegmentRecord, column string) (*bloom.Filter, error) {
	p.mu.RLock()
	if byCol, ok := p.filters[rec.SegmentID]; ok {
		if f, ok := byCol[column]; ok {
			p.mu.RUnlock()
			return f, nil
		}
	}
	p.mu.RUnlock()

	sidecar, err := p.loadSidecar(ctx, rec)
	if err != nil {
		return nil, err
	}
	if sidecar == nil {
		return nil, nil
	}

	f, err := sidecar.Filter(column)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, ok := p.filters[rec.SegmentID]; !ok {
		p.filters[rec.SegmentID] = make(map[string]*bloom.Filter)
	}
	p.filters[rec.SegmentID][column] = f
	p.mu.Unlock()

	return f, nil
}

// loadSidecar reads a segment's metadata sidecar from the file store.
func (p *Pruner) loadSidecar(ctx context.Context, rec *catalog.SegmentRecord) (*partition.MetadataSidecar, error) {
	p.mu.RLock()
	if s, ok := p.sidecars[rec.SegmentID]; ok {
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	rc, err := p.store.OpenObject(ctx, rec.MetaPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	sidecar, err := partition.FromJSON(data)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sidecars[rec.SegmentID] = sidecar
	p.mu.Unlock()

	return sidecar, nil
}

// ClearCache drops all cached sidecars and filters.
func (p *Pruner) ClearCache() {
	p.mu.Lock()
	p.sidecars = make(map[string]*partition.MetadataSidecar)
	p.filters = make(map[string]map[string]*bloom.Filter)
	p.mu.Unlock()
}
