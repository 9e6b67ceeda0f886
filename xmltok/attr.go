package xmltok

import "github.com/openvmd/vmp/xmlutil"

// AttrValue returns the value of the named attribute, matched
// case-insensitively.
func AttrValue(attrs []Attr, name string) (string, bool) {
	for _, a := range attrs {
		if xmlutil.NameEq(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}
