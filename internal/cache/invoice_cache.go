// Package cache holds the in-memory index of unpaid ledger invoices used
// for matching. The cache is loaded page by page, sealed once the fetch is
// complete, and only then becomes visible to lookups. A partially loaded
// cache would turn real invoices into spurious misses.
package cache

import (
	"sync"

	"github.com/shopspring/decimal"

	"payrecon/internal/domain"
)

type InvoiceCache struct {
	mu     sync.RWMutex
	sealed bool
	pages  map[int][]string
	byKey  map[string][]domain.InvoiceRecord
}

func New() *InvoiceCache {
	return &InvoiceCache{
		pages: map[int][]string{},
		byKey: map[string][]domain.InvoiceRecord{},
	}
}

// LoadPage indexes one page of ledger records. Loading the same page again
// replaces its previous contents rather than appending duplicates.
func (c *InvoiceCache) LoadPage(page int, records []domain.InvoiceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return domain.ErrCacheSealed
	}

	for _, key := range c.pages[page] {
		c.removeKeyLocked(page, key)
	}
	c.pages[page] = nil

	for _, rec := range records {
		if rec.NormalizedKey == "" {
			rec.NormalizedKey = domain.NormalizeInvoiceKey(rec.InvoiceNumber)
		}
		if rec.NormalizedKey == "" {
			continue
		}
		rec.Page = page
		c.byKey[rec.NormalizedKey] = append(c.byKey[rec.NormalizedKey], rec)
		c.pages[page] = append(c.pages[page], rec.NormalizedKey)
	}
	return nil
}

func (c *InvoiceCache) removeKeyLocked(page int, key string) {
	recs := c.byKey[key]
	kept := recs[:0]
	for _, r := range recs {
		if r.Page != page {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(c.byKey, key)
	} else {
		c.byKey[key] = kept
	}
}

// Seal marks the load complete. Lookups fail until Seal is called and
// loads fail after it.
func (c *InvoiceCache) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}

// Sealed reports whether the cache is ready for matching.
func (c *InvoiceCache) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

// Lookup returns the cached record for a normalized invoice key. When the
// ledger holds duplicate invoice numbers, the entry with the larger
// outstanding balance wins and collision is reported so the caller can
// note it.
func (c *InvoiceCache) Lookup(normalizedKey string) (rec *domain.InvoiceRecord, collision bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.sealed {
		return nil, false, domain.ErrCacheNotSealed
	}
	recs := c.byKey[normalizedKey]
	if len(recs) == 0 {
		return nil, false, nil
	}
	best := 0
	for i := 1; i < len(recs); i++ {
		if recs[i].OutstandingAmount().GreaterThan(recs[best].OutstandingAmount()) {
			best = i
		}
	}
	out := recs[best]
	return &out, len(recs) > 1, nil
}

// MarkPaid transitions an invoice to paid after a confirmed external
// write. Reserved for the write-back coordinator.
func (c *InvoiceCache) MarkPaid(normalizedKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sealed {
		return domain.ErrCacheNotSealed
	}
	recs := c.byKey[normalizedKey]
	if len(recs) == 0 {
		return domain.ErrNotFound
	}
	for i := range recs {
		recs[i].Status = domain.InvoiceStatusPaid
		recs[i].Balance = decimal.Zero
	}
	return nil
}

// IsPaid reports whether the cached invoice has already received a
// write-back in this run.
func (c *InvoiceCache) IsPaid(normalizedKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.byKey[normalizedKey] {
		if r.Status == domain.InvoiceStatusPaid {
			return true
		}
	}
	return false
}

// Len returns the number of distinct invoice keys loaded.
func (c *InvoiceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}

// Reset clears all pages and reopens the cache for loading.
func (c *InvoiceCache) Reset() {
	c.mu.Lock()
	c.pages = map[int][]string{}
	c.byKey = map[string][]domain.InvoiceRecord{}
	c.sealed = false
	c.mu.Unlock()
}
