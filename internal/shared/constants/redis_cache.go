package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// Pattern: topgun:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

// Dynamic Data (Short TTL: changes frequently)
const (
	TTL_DYNAMIC_MEDIUM = 10 * time.Minute // room memberships
	TTL_DYNAMIC_QUICK  = 2 * time.Minute  // per-user payment lists
)

// Highly Dynamic (Micro TTL)
const (
	TTL_REALTIME_SHORT = 30 * time.Second // header locks
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "topgun"
)

// ================== SEATS MODULE ==================

const (
	CACHE_KEY_SEATS_ALL    = CACHE_PREFIX + ":seats:list:all"     // full catalogue
	CACHE_KEY_SEATS_FLIGHT = CACHE_PREFIX + ":seats:list:flight:" // + flight-id
)

const (
	// Listings only; checkout prices are never served from cache
	TTL_SEATS_LIST = time.Minute
)

// ================== PAYMENTS MODULE ==================

const (
	CACHE_KEY_PAYMENT_LIST   = CACHE_PREFIX + ":payments:list:user:"   // + user-id
	CACHE_KEY_PAYMENT_TOTALS = CACHE_PREFIX + ":payments:totals:user:" // + user-id

	// Not a cache entry: owner token for the per-header mutation lock
	LOCK_KEY_PAYMENT_HEADER = CACHE_PREFIX + ":payments:lock:header:" // + payment-no
)

const (
	TTL_PAYMENT_LIST = TTL_DYNAMIC_QUICK // lists and totals
	TTL_HEADER_LOCK  = TTL_REALTIME_SHORT
)

// ================== CHAT MODULE ==================

const (
	CACHE_KEY_ROOM_MEMBERS = CACHE_PREFIX + ":chat:members:room:" // + room-no
)

const (
	TTL_ROOM_MEMBERS = TTL_DYNAMIC_MEDIUM
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_SEATS_ALL = CACHE_PREFIX + ":seats:*"
	PATTERN_INVALIDATE_CHAT_ALL  = CACHE_PREFIX + ":chat:*"
)

// ================== HELPER FUNCTIONS ==================

func BuildFlightSeatsKey(flightID int64) string {
	return CACHE_KEY_SEATS_FLIGHT + fmt.Sprintf("%d", flightID)
}

func BuildPaymentListKey(userID string) string {
	return CACHE_KEY_PAYMENT_LIST + userID
}

func BuildPaymentTotalsKey(userID string) string {
	return CACHE_KEY_PAYMENT_TOTALS + userID
}

func BuildHeaderLockKey(paymentNo int64) string {
	return LOCK_KEY_PAYMENT_HEADER + fmt.Sprintf("%d", paymentNo)
}

func BuildRoomMembersKey(roomNo int64) string {
	return CACHE_KEY_ROOM_MEMBERS + fmt.Sprintf("%d", roomNo)
}
