package images

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"analyzeit/internal/shared/storage/object"
	"analyzeit/internal/shared/telemetry"
)

const (
	// PresignTTL is how long a presigned S3 URL stays valid.
	PresignTTL = 15 * time.Minute
	// MediaPrefix is where local objects are served.
	MediaPrefix = "/media/"

	cacheSize = 4096
	// Cached URLs are dropped well before they expire so a rendered page
	// never carries a URL that dies while the user is looking at it.
	cacheTTL = PresignTTL / 2
)

// Presigner signs time-limited GET URLs.
type Presigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Resolver turns the image_url stored on a record into something a browser
// can load. Presigned URLs are reused while fresh so live re-renders keep the
// same src and the browser cache hits.
type Resolver struct {
	presigner Presigner
	cache     *expirable.LRU[string, string]
}

// NewResolver builds a Resolver. A nil presigner leaves s3:// references
// unresolved.
func NewResolver(presigner Presigner) *Resolver {
	return &Resolver{
		presigner: presigner,
		cache:     expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
	}
}

// Resolve returns a browser URL for raw, or "" when it cannot be resolved.
func (r *Resolver) Resolve(ctx context.Context, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http", "https", "data":
		return raw
	case object.SchemeLocal:
		key := strings.TrimLeft(u.Host+u.Path, "/")
		if key == "" {
			return ""
		}
		return MediaPrefix + key
	case object.SchemeS3:
		return r.presign(ctx, raw, u.Host, strings.TrimLeft(u.Path, "/"))
	default:
		return ""
	}
}

func (r *Resolver) presign(ctx context.Context, raw, bucket, key string) string {
	if r == nil || r.presigner == nil || bucket == "" || key == "" {
		return ""
	}
	if cached, ok := r.cache.Get(raw); ok {
		return cached
	}
	signed, err := r.presigner.PresignGet(ctx, bucket, key, PresignTTL)
	if err != nil {
		telemetry.Warn("images.presign_failed", map[string]any{"ref": raw, "err": err})
		return ""
	}
	r.cache.Add(raw, signed)
	return signed
}
