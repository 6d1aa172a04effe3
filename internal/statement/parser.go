package statement

import (
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of parsed batches kept by NewParser when no
// size is given.
const DefaultCacheSize = 1000

// Parser splits SQL batches and keeps the results in an LRU cache keyed by
// the SQL text. It is safe for concurrent use.
type Parser struct {
	cache *lru.Cache
}

// NewParser creates a parser caching up to size batches. A size of zero or
// less selects DefaultCacheSize.
func NewParser(size int) (*Parser, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Parser{cache: cache}, nil
}

// Parse returns the batch for sql, splitting it on a cache miss. Failed
// parses are not cached.
func (p *Parser) Parse(sql string) (*Batch, error) {
	if v, ok := p.cache.Get(sql); ok {
		return v.(*Batch), nil
	}
	batch, err := Split(sql)
	if err != nil {
		return nil, err
	}
	p.cache.Add(sql, batch)
	return batch, nil
}

// Len returns the number of cached batches.
func (p *Parser) Len() int {
	return p.cache.Len()
}
