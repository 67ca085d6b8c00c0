package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{user_id}:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Cached order status: order_status:{order_id} -> {"status": "...", "updated_at": "...", "ts": unix_ms}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart hash cart:{user_id} (product_id -> qty); wishlist set wishlist:{user_id}
	KeyCart     = "cart:%s"
	KeyWishlist = "wishlist:%s"

	// Password reset: reset:{token} -> user_id
	KeyPasswordReset = "reset:%s"

	// Catalog listings: catalog:gen is bumped to invalidate every catalog:products:{gen}:{category}
	KeyCatalogGen      = "catalog:gen"
	KeyCatalogProducts = "catalog:products:%d:%s"
)

var (
	TTLIdempotency   = 24 * time.Hour
	TTLStatusCache   = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
	TTLPasswordReset = time.Hour
	TTLCart          = 30 * 24 * time.Hour
)
