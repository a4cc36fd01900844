package game

// UniqueMatch resolves target against names. An exact match wins; otherwise
// target must be a prefix of exactly one name, or with matchParts set, of
// exactly one dot or dash separated part of a name. Comparison is case
// folded. It returns -1 and false when nothing or more than one name matches.
func UniqueMatch(target string, names []string, matchParts bool) (int, bool) {
	needle := foldName(target)
	if needle == "" {
		return -1, false
	}

	partial := -1
	ambiguous := false
	for i, name := range names {
		candidate := foldName(name)
		if candidate == needle {
			return i, true
		}
		if !prefixMatch(needle, candidate, matchParts) {
			continue
		}
		if partial != -1 {
			ambiguous = true
			continue
		}
		partial = i
	}

	if partial != -1 && !ambiguous {
		return partial, true
	}
	return -1, false
}

// prefixMatch reports whether the folded needle starts candidate or, with
// matchParts set, one of its parts.
func prefixMatch(needle, candidate string, matchParts bool) bool {
	if hasPrefix(candidate, needle) {
		return true
	}
	if !matchParts {
		return false
	}
	for _, part := range splitParts(candidate) {
		if hasPrefix(part, needle) {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func splitParts(name string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' || name[i] == '-' {
			if i > start {
				parts = append(parts, name[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
