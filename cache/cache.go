package cache

import (
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

var DefaultThumbnailTTL = 1 * time.Hour

type Cache struct {
	Thumbnails ThumbnailsCache
}

func New() *Cache {
	thumbnailsCache := ccache.New(
		ccache.Configure[[]byte]().
			MaxSize(100).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		Thumbnails: ThumbnailsCache{
			c:   thumbnailsCache,
			mux: sync.Mutex{},
		},
	}
}

type ThumbnailsCache struct {
	c   *ccache.Cache[[]byte]
	mux sync.Mutex
}

func (c *ThumbnailsCache) Fetch(k string, ttl time.Duration, fetch func() ([]byte, error)) (*ccache.Item[[]byte], error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.c.Fetch(k, ttl, fetch)
}
