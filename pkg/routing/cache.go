package routing

import (
	"fmt"
	"lintang/deliverynav/pkg/datastructure"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// ttlCache is a capacity bounded LRU whose entries also expire ttl after their last use.
type ttlCache[V any] struct {
	entries *lru.Cache[string, cacheEntry[V]]
	ttl     time.Duration
	now     func() time.Time
}

func newTTLCache[V any](size int, ttl time.Duration, now func() time.Time) (*ttlCache[V], error) {
	entries, err := lru.New[string, cacheEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &ttlCache[V]{entries: entries, ttl: ttl, now: now}, nil
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	now := c.now()
	if now.Sub(e.storedAt) > c.ttl {
		c.entries.Remove(key)
		return zero, false
	}
	e.storedAt = now
	c.entries.Add(key, e)
	return e.value, true
}

func (c *ttlCache[V]) add(key string, v V) {
	c.entries.Add(key, cacheEntry[V]{value: v, storedAt: c.now()})
}

func (c *ttlCache[V]) len() int {
	return c.entries.Len()
}

func roundedCoord(c datastructure.Coordinate) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

func routeKey(origin, destination datastructure.Coordinate, kind string, includeTraffic bool) string {
	return fmt.Sprintf("%s|%s|%s|traffic=%t", roundedCoord(origin), roundedCoord(destination), kind, includeTraffic)
}

func matrixKey(origins, destinations []datastructure.Coordinate) string {
	var b strings.Builder
	b.WriteString("matrix|")
	for _, o := range origins {
		b.WriteString(roundedCoord(o))
		b.WriteByte(';')
	}
	b.WriteByte('|')
	for _, d := range destinations {
		b.WriteString(roundedCoord(d))
		b.WriteByte(';')
	}
	return b.String()
}
