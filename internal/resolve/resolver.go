package resolve

import (
	"database/sql"
	"time"

	"propsignal/internal/models"
	"propsignal/internal/normalize"
)

// RawRef is the source-record projection the resolver matches on. Each
// staging dataset adapts its rows into this shape.
type RawRef struct {
	SourceSystem string
	SourceKey    string
	BBL          string
	BaseBBL      string
	Address      string
	ZipCode      string
}

// Stats aggregates one resolution pass. MatchRate is the measured ratio,
// never a target.
type Stats struct {
	SourceSystem string
	Matched      int
	Unmatched    int
}

// MatchRate returns matched/(matched+unmatched), 0 when empty.
func (s Stats) MatchRate() float64 {
	total := s.Matched + s.Unmatched
	if total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(total)
}

// Resolver matches raw records against an injected property index.
type Resolver struct {
	idx *PropertyIndex
}

// NewResolver creates a resolver over a per-run index.
func NewResolver(idx *PropertyIndex) *Resolver {
	return &Resolver{idx: idx}
}

// Resolve matches one raw record. Tiers are tried in strict priority order,
// short-circuiting on the first hit; confidence follows the tier, never
// assigned independently. No match yields an explicit unmatched record.
func (r *Resolver) Resolve(ref RawRef) models.ResolutionRecord {
	rec := models.ResolutionRecord{
		SourceSystem: ref.SourceSystem,
		SourceKey:    ref.SourceKey,
		ResolvedAt:   time.Now().UTC(),
	}

	// Tier 1: exact BBL
	if ref.BBL != "" {
		if id, ok := r.idx.byBBL[ref.BBL]; ok {
			rec.PropertyID = sql.NullInt64{Int64: id, Valid: true}
			rec.MatchType = models.MatchExact
			rec.MatchConfidence = models.ConfidenceFor(models.MatchExact)
			return rec
		}
	}

	// Tier 2: building-level base BBL for unit records without their own lot
	baseBBL := ref.BaseBBL
	if baseBBL == "" {
		baseBBL = ref.BBL
	}
	if baseBBL != "" {
		if id, ok := r.idx.byBaseBBL[baseBBL]; ok {
			rec.PropertyID = sql.NullInt64{Int64: id, Valid: true}
			rec.MatchType = models.MatchRegistry
			rec.MatchConfidence = models.ConfidenceFor(models.MatchRegistry)
			return rec
		}
	}

	// Tier 3: normalized address|zip composite key
	if key := normalize.AddressKey(ref.Address, ref.ZipCode); key != "" {
		if id, ok := r.idx.byAddressKey[key]; ok {
			rec.PropertyID = sql.NullInt64{Int64: id, Valid: true}
			rec.MatchType = models.MatchAddress
			rec.MatchConfidence = models.ConfidenceFor(models.MatchAddress)
			return rec
		}
	}

	// Explicit unmatched, persisted for coverage auditing
	rec.MatchType = models.MatchUnmatched
	rec.MatchConfidence = models.ConfidenceFor(models.MatchUnmatched)
	return rec
}

// ResolveAll folds raw records into resolution records plus aggregate
// counts. The fold makes partial coverage an explicit return value instead
// of something hidden in logs.
func (r *Resolver) ResolveAll(sourceSystem string, refs []RawRef) ([]models.ResolutionRecord, Stats) {
	records := make([]models.ResolutionRecord, 0, len(refs))
	stats := Stats{SourceSystem: sourceSystem}

	for _, ref := range refs {
		ref.SourceSystem = sourceSystem
		rec := r.Resolve(ref)
		records = append(records, rec)
		if rec.PropertyID.Valid {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
	}

	return records, stats
}
