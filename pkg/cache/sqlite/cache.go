package sqlite

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// Cache stores rendered cost reports keyed by their inputs.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS report_cache (
	cache_key TEXT PRIMARY KEY,
	pricing_hash TEXT NOT NULL,
	events_fingerprint TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// New creates a Cache. A zero ttl keeps entries until cleared.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Key hashes the report selector together with the catalog and event identities.
func Key(sel models.ReportSelector, pricingHash, eventsFingerprint string) string {
	h := sha256.New()
	data, _ := json.Marshal(sel)
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(pricingHash))
	h.Write([]byte{0})
	h.Write([]byte(eventsFingerprint))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get retrieves a cached report. Returns false if not found or expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	var payload []byte
	var created int64

	err := c.db.QueryRow(
		`SELECT payload, created_at FROM report_cache WHERE cache_key = ?`, key,
	).Scan(&payload, &created)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(time.Unix(0, created)) > c.ttl {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return payload, true
}

// Put stores a report.
func (c *Cache) Put(e models.CacheEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO report_cache (cache_key, pricing_hash, events_fingerprint, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Key, e.PricingHash, e.EventsFingerprint, e.Payload, created.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM report_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. With a non-empty pricingHash only entries
// computed against a different catalog are removed.
func (c *Cache) Clear(pricingHash string) (int64, error) {
	query := `DELETE FROM report_cache`
	var args []any
	if pricingHash != "" {
		query += ` WHERE pricing_hash != ?`
		args = append(args, pricingHash)
	}
	res, err := c.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
