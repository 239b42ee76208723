// Package cache implements the validation cache backends: in-memory,
// Redis, database-backed, and the tiered combination used by default.
package cache

import (
	"time"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// defaultTTL applies when a cache type has no configured TTL
const defaultTTL = time.Hour

// TTLPolicy maps each cache type to how long its entries stay fresh.
type TTLPolicy map[validation.CacheType]time.Duration

// PolicyFromConfig builds the TTL policy from configuration.
func PolicyFromConfig(cfg config.CacheConfig) TTLPolicy {
	return TTLPolicy{
		validation.CacheTypeCUIT:      cfg.CUITTTL,
		validation.CacheTypeCAE:       cfg.CAETTL,
		validation.CacheTypeTaxpayer:  cfg.TaxpayerTTL,
		validation.CacheTypeParameter: cfg.ParameterTTL,
	}
}

// TTLFor returns the TTL for a cache type, falling back to the default for
// unknown or unconfigured types.
func (p TTLPolicy) TTLFor(ctype validation.CacheType) time.Duration {
	if ttl, ok := p[ctype]; ok && ttl > 0 {
		return ttl
	}
	return defaultTTL
}
