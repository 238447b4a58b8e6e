package cache

import (
	"fmt"
	"strings"
)

// Key joins parts with "_" into a cache key, e.g. Key("price", "2008", 120, 36) = "price_2008_120_36".
func Key(parts ...interface{}) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, "_")
}

// Prefix returns the key prefix matching every key that starts with part.
func Prefix(part interface{}) string {
	return fmt.Sprint(part) + "_"
}
