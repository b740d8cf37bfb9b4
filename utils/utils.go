package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// CopyPtr returns a pointer to a copy of *p, or nil
func CopyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// DerefString returns the pointed string or empty
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NormalizeTags trims each tag, drops empty ones and removes duplicates keeping first occurrence order
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
