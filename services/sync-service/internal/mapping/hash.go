package mapping

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// segmentsKey carries the segment list inside the hashed document.
const segmentsKey = "_segments"

// ComputeHash fingerprints mapped fields plus segment membership. The result
// does not depend on map iteration order or on the order of segments.
func ComputeHash(fields Fields, segments []string) string {
	doc := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc[segmentsKey] = strings.Join(SortedSegments(segments), ",")

	// encoding/json writes map keys in sorted order.
	data, err := json.Marshal(doc)
	if err != nil {
		// Fields only ever hold JSON-safe scalars; fall back to %v so a
		// bad value still produces a stable digest.
		data = []byte(fmt.Sprintf("%v", doc))
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// SortedSegments returns a sorted, de-duplicated copy of segments.
func SortedSegments(segments []string) []string {
	seen := make(map[string]bool, len(segments))
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
