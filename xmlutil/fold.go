// Package xmlutil provides small XML name and text helpers used by the
// management protocol engine. Element and attribute names in the protocol
// are case-insensitive, so all lookups are performed on folded names.
package xmlutil

// Fold returns the ASCII lower-case form of an XML name. Protocol names
// are plain ASCII identifiers, so full Unicode folding is not required.
func Fold(name string) string {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c >= 'A' && c <= 'Z' {
			// fold on the slow path only once we know it is needed
			b := []byte(name)
			for j := i; j < len(b); j++ {
				if c := b[j]; c >= 'A' && c <= 'Z' {
					b[j] = c + ('a' - 'A')
				}
			}
			return string(b)
		}
	}
	return name
}

// NameEq reports whether two XML names match case-insensitively.
func NameEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// IsNameStart reports whether c may begin an XML name.
func IsNameStart(c byte) bool {
	return c == '_' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsNameChar reports whether c may appear within an XML name.
func IsNameChar(c byte) bool {
	return IsNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}
