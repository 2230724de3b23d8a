package infra

import (
	"user-manager/usermanager/domain"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// CachedResponse é o último corpo 200 de uma URL, junto do ETag que o validou.
type CachedResponse struct {
	ETag string
	Body []byte
}

// ResponseCache guarda respostas GET por URL para revalidação condicional
// (If-None-Match). Nunca é consultado para evitar a requisição: só para
// reaproveitar o corpo em um 304.
type ResponseCache struct {
	lru *lru.Cache[string, CachedResponse]
}

var _ domain.Purger = (*ResponseCache)(nil)

func NewResponseCache(size int) (*ResponseCache, error) {
	c, err := lru.New[string, CachedResponse](size)
	if err != nil {
		return nil, errors.Wrap(err, "create response cache")
	}
	return &ResponseCache{lru: c}, nil
}

func (c *ResponseCache) Get(url string) (CachedResponse, bool) {
	return c.lru.Get(url)
}

func (c *ResponseCache) Add(url string, resp CachedResponse) {
	c.lru.Add(url, resp)
}

func (c *ResponseCache) Len() int { return c.lru.Len() }

func (c *ResponseCache) Purge() { c.lru.Purge() }
