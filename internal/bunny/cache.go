package bunny

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the entry count for a cache built with a non-positive
// size.
const DefaultCacheSize = 256

// Cache memoizes bunny results per service and input. Entries are keyed by a
// digest of the service id and the job inputs, so re-running the same text
// through the same translator, or the same bytes through the same OCR
// service, is answered without dispatching a provider.
type Cache struct {
	lru *lru.Cache[string, string]
}

// NewCache returns a cache holding up to size results.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// Only errors on non-positive size, which is excluded above.
	c, _ := lru.New[string, string](size)
	return &Cache{lru: c}
}

// Get returns the cached result for key, if present.
func (c *Cache) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

// Put stores a result under key.
func (c *Cache) Put(key, result string) {
	c.lru.Add(key, result)
}

// Len reports the number of cached results.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// OCRKey derives the cache key for a recognition job.
func OCRKey(serviceID string, req OCRRequest) string {
	h := sha256.New()
	h.Write([]byte("ocr\x00"))
	h.Write([]byte(serviceID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(len(req.Data))))
	h.Write([]byte{0})
	h.Write(req.Data)
	return hex.EncodeToString(h.Sum(nil))
}

// TranslationKey derives the cache key for a translation job.
func TranslationKey(serviceID string, req TranslationRequest) string {
	h := sha256.New()
	h.Write([]byte("translate\x00"))
	h.Write([]byte(serviceID))
	h.Write([]byte{0})
	h.Write([]byte(req.Source))
	h.Write([]byte{0})
	h.Write([]byte(req.Target))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	return hex.EncodeToString(h.Sum(nil))
}
