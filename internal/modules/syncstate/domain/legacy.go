package domain

import "strings"

// RawEntry is one unscoped local cache entry, as written by builds that kept
// a single shared namespace.
type RawEntry struct {
	Key   string
	Value []byte
}

const legacyIDLength = 8

// LegacyFieldName derives the logical field a legacy key belongs to.
//
// The prefix is stripped first. A remainder of the form "<userID>-<field>"
// yields field. A remainder that exactly names a registered key is taken as
// is, so registered names are never mangled by the id heuristic. Otherwise a
// leading 8-character hex segment is treated as a generated id and dropped.
func LegacyFieldName(rawKey, prefix, userID string, registry Registry) (LogicalKey, bool) {
	if !strings.HasPrefix(rawKey, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(rawKey, prefix)
	if userID != "" && strings.HasPrefix(rest, userID+"-") {
		rest = strings.TrimPrefix(rest, userID+"-")
	}
	if !registry.Known(LogicalKey(rest)) {
		segments := strings.Split(rest, "-")
		if len(segments) > 1 && looksLikeGeneratedID(segments[0]) {
			rest = strings.Join(segments[1:], "-")
		}
	}
	key := LogicalKey(rest)
	if key.Validate() != nil {
		return "", false
	}
	return key, true
}

func looksLikeGeneratedID(segment string) bool {
	if len(segment) != legacyIDLength {
		return false
	}
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
