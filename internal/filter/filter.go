// Package filter builds bounded, whitelisted listing filters from request
// fields.
package filter

import (
	"math"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/request"
)

// DefaultPageLimit is the maximum page size when none is configured.
const DefaultPageLimit = 50

// MaxOffset bounds the row offset a page_no may select.
const MaxOffset = math.MaxInt32

var (
	sortKeys = map[string]bool{engine.SortCreatedAt: true, engine.SortRate: true}
	sortDirs = map[string]bool{engine.SortAsc: true, engine.SortDesc: true}
)

// Builder turns request payloads into listing filters.
type Builder struct {
	coins     coins.Registry
	pageLimit int
	// strict makes an unresolvable coin filter a validation error instead of
	// matching any coin.
	strict bool
}

// NewBuilder creates a filter builder. A non-positive pageLimit selects
// DefaultPageLimit.
func NewBuilder(reg coins.Registry, pageLimit int, strict bool) *Builder {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Builder{coins: reg, pageLimit: pageLimit, strict: strict}
}

// PageLimit returns the maximum page size.
func (b *Builder) PageLimit() int { return b.pageLimit }

// Default returns the filter used when a listing has no body.
func (b *Builder) Default() *engine.ListingFilter {
	return &engine.ListingFilter{
		CoinFrom: coins.Any,
		CoinTo:   coins.Any,
		PageNo:   1,
		Limit:    b.pageLimit,
		SortBy:   engine.SortCreatedAt,
		SortDir:  engine.SortDesc,
	}
}

// Build constructs a filter from p. When offerID is set it is added as an
// exact-match key alongside the defaults.
func (b *Builder) Build(p *request.Payload, offerID *engine.ID) (*engine.ListingFilter, error) {
	f := b.Default()
	if offerID != nil {
		id := *offerID
		f.OfferID = &id
	}
	if p == nil || p.Empty() {
		return f, nil
	}

	var err error
	if f.CoinFrom, err = b.coinFilter(p, "coin_from"); err != nil {
		return nil, err
	}
	if f.CoinTo, err = b.coinFilter(p, "coin_to"); err != nil {
		return nil, err
	}

	if p.Has("sort_by") {
		sortBy, _ := p.String("sort_by")
		if !sortKeys[sortBy] {
			return nil, apierr.Validation("invalid sort by: %s", sortBy)
		}
		f.SortBy = sortBy
	}
	if p.Has("sort_dir") {
		sortDir, _ := p.String("sort_dir")
		if !sortDirs[sortDir] {
			return nil, apierr.Validation("invalid sort dir: %s", sortDir)
		}
		f.SortDir = sortDir
	}

	if p.Has("page_no") {
		pageNo, err := p.Int("page_no")
		if err != nil {
			return nil, err
		}
		if pageNo < 1 {
			return nil, apierr.Validation("invalid page_no: %d", pageNo)
		}
		f.PageNo = pageNo
	}

	if p.Has("offset") {
		offset, err := p.Int("offset")
		if err != nil {
			return nil, err
		}
		if offset < 0 {
			return nil, apierr.Validation("invalid offset: %d", offset)
		}
		f.Offset = &offset
	}

	if p.Has("limit") {
		limit, err := p.Int("limit")
		if err != nil {
			return nil, err
		}
		if limit <= 0 || limit > b.pageLimit {
			return nil, apierr.Validation("invalid limit: %d (max %d)", limit, b.pageLimit)
		}
		f.Limit = limit
	}

	if f.PageNo-1 > MaxOffset/f.Limit {
		return nil, apierr.Validation("invalid page_no: %d", f.PageNo)
	}

	return f, nil
}

func (b *Builder) coinFilter(p *request.Payload, name string) (coins.ID, error) {
	if !p.Has(name) {
		return coins.Any, nil
	}
	v, _ := p.String(name)
	if v == "-1" {
		return coins.Any, nil
	}
	ci, ok := b.coins.Lookup(v)
	if !ok {
		if b.strict {
			return 0, apierr.Validation("unknown coin in %s: %s", name, v)
		}
		return coins.Any, nil
	}
	return ci.ID(), nil
}
