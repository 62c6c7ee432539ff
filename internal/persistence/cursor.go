// Package persistence holds helpers shared by the timeline storage and API layers.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

// Cursor marks the last activity of a timeline page.
type Cursor struct {
	StartTime  time.Time
	SourceType activity.SourceType
	ID         int64
}

// EncodeCursor serialises the cursor to an opaque token.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s|%d", c.StartTime.UTC().Format(time.RFC3339Nano), c.SourceType, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor time: %w", err)
	}
	source, err := activity.ParseSourceType(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{StartTime: ts, SourceType: source, ID: id}, nil
}

// Page returns up to limit activities that sort after cursor, plus the cursor for the
// following page. sorted must already be in timeline order.
func Page(sorted []activity.UnifiedActivity, cursor *Cursor, limit int) ([]activity.UnifiedActivity, *Cursor) {
	start := 0
	if cursor != nil {
		marker := activity.UnifiedActivity{StartTime: cursor.StartTime, SourceType: cursor.SourceType, ID: cursor.ID}
		for start < len(sorted) && !activity.Less(marker, sorted[start]) {
			start++
		}
	}
	rest := sorted[start:]
	if limit <= 0 || len(rest) <= limit {
		return rest, nil
	}
	page := rest[:limit]
	last := page[len(page)-1]
	return page, &Cursor{StartTime: last.StartTime, SourceType: last.SourceType, ID: last.ID}
}
