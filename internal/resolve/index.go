// Package resolve links raw source records to canonical properties using a
// tiered matching strategy.
package resolve

import (
	"propsignal/internal/models"
	"propsignal/internal/normalize"
)

// PropertyIndex holds the in-memory lookup maps for one resolution run.
// Built fresh per run from the canonical store and passed in explicitly,
// never kept as global state across runs.
type PropertyIndex struct {
	byBBL        map[string]int64
	byBaseBBL    map[string]int64
	byAddressKey map[string]int64
}

// BuildIndex constructs the lookup maps from canonical properties. For
// base-BBL lookups the first property seen for a building wins, which is
// stable because input ordering comes from the store.
func BuildIndex(properties []models.Property) *PropertyIndex {
	idx := &PropertyIndex{
		byBBL:        make(map[string]int64, len(properties)),
		byBaseBBL:    make(map[string]int64),
		byAddressKey: make(map[string]int64, len(properties)),
	}

	for i := range properties {
		p := &properties[i]

		if p.BBL.Valid && p.BBL.String != "" {
			idx.byBBL[p.BBL.String] = p.ID
		}
		if p.BaseBBL.Valid && p.BaseBBL.String != "" {
			if _, seen := idx.byBaseBBL[p.BaseBBL.String]; !seen {
				idx.byBaseBBL[p.BaseBBL.String] = p.ID
			}
		}

		address := ""
		if p.NormalizedAddress.Valid && p.NormalizedAddress.String != "" {
			address = p.NormalizedAddress.String
		} else if p.Address.Valid {
			address = normalize.Normalize(p.Address.String)
		}
		if address != "" && p.ZipCode.Valid && p.ZipCode.String != "" {
			key := address + "|" + p.ZipCode.String
			if _, seen := idx.byAddressKey[key]; !seen {
				idx.byAddressKey[key] = p.ID
			}
		}
	}

	return idx
}

// Size returns the number of BBL-indexed properties, for stage logging.
func (idx *PropertyIndex) Size() int {
	return len(idx.byBBL)
}
