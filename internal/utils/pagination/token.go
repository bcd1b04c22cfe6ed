package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// tokenPrefix tags sequence cursors so a token minted for another listing is rejected.
const tokenPrefix = "seq"

// DefaultLimit is the page size used when the caller asks for none.
const DefaultLimit = 100

// EncodeSequenceToken creates a base64 encoded cursor pointing after the given chain sequence.
func EncodeSequenceToken(sequence int64) string {
	tokenStr := fmt.Sprintf("%s|%d", tokenPrefix, sequence)
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeSequenceToken parses a cursor produced by EncodeSequenceToken.
// An empty token decodes to 0, the position before the genesis entry.
func DecodeSequenceToken(token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), "|", 2)
	if len(parts) != 2 || parts[0] != tokenPrefix {
		return 0, fmt.Errorf("invalid pagination token format (split)")
	}
	sequence, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || sequence < 0 {
		return 0, fmt.Errorf("invalid pagination token format (sequence parse)")
	}
	return sequence, nil
}

// Page returns the items after the cursor, at most limit of them, plus the
// cursor for the following page when more items remain. seqOf must be
// increasing over items.
func Page[T any](items []T, after int64, limit int, seqOf func(T) int64) ([]T, *string) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := 0
	for start < len(items) && seqOf(items[start]) <= after {
		start++
	}
	end := start + limit
	if end >= len(items) {
		return items[start:], nil
	}
	next := EncodeSequenceToken(seqOf(items[end-1]))
	return items[start:end], &next
}
