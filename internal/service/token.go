package service

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"restaurant-ops-api/internal/model"
)

// tokenSuffix captures the counter at the end of a token such as "DEL-007".
var tokenSuffix = regexp.MustCompile(`(\d+)$`)

// FormatToken renders the token of the n-th order of type t on a day.
func FormatToken(t model.OrderType, n int) string {
	return fmt.Sprintf("%s-%03d", t.TokenPrefix(), n)
}

// tokenNumber extracts the counter of a token, or 0 when there is none.
func tokenNumber(token string) int {
	m := tokenSuffix.FindStringSubmatch(token)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// tokenCounters returns the next counter per order type for the calendar day of now.
// Counters are derived from the highest token suffix seen among that day's orders
// and start at 1 for a type with no orders yet.
func tokenCounters(orders []model.SavedOrder, now time.Time) map[model.OrderType]int {
	next := make(map[model.OrderType]int, len(model.OrderTypes))
	for _, t := range model.OrderTypes {
		next[t] = 1
	}

	for _, o := range orders {
		if !sameDay(o.Timestamp, now) {
			continue
		}
		if n := tokenNumber(o.TokenNumber) + 1; n > next[o.OrderType] {
			next[o.OrderType] = n
		}
	}
	return next
}

// sameDay reports whether a falls on the calendar day of b, in b's location.
func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.In(b.Location()).Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
