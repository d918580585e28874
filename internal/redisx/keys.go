package redisx

import "time"

const (
	// Order status read cache: preorder:order_status:{order_id} -> {"status":N}
	KeyOrderStatus = "preorder:order_status:%s"

	// Dedup of event processing: preorder:dedup:{service}:{event_id}
	KeyDedup = "preorder:dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
