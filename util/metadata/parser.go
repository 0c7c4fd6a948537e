package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// ParseMetadataString parses "key:value,key:value" into a map. Values may
// themselves contain ':' (URLs); keys may not.
func ParseMetadataString(metadataStr string) (map[string]any, error) {
	if metadataStr == "" {
		return nil, fmt.Errorf("metadata string cannot be empty")
	}

	items := make(map[string]any)
	pairs := strings.Split(metadataStr, ",")

	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("metadata must be in key:value format, got: %s", pair)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if key == "" {
			return nil, fmt.Errorf("metadata key cannot be empty in pair: %s", pair)
		}

		if value == "" {
			return nil, fmt.Errorf("metadata value cannot be empty in pair: %s", pair)
		}

		if _, dup := items[key]; dup {
			return nil, fmt.Errorf("duplicate metadata key: %s", key)
		}

		items[key] = value
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no valid metadata key-value pairs found")
	}

	return items, nil
}

// FormatMetadataOutput renders metadata one "key: value" per line, sorted by key.
func FormatMetadataOutput(items map[string]any) string {
	if len(items) == 0 {
		return "No metadata found"
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %v", k, items[k]))
	}
	return sb.String()
}
