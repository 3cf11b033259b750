package obs

import "strings"

// CanonicalPath collapses identifier segments so metric labels stay
// low-cardinality. Unknown paths are returned as-is.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(segments) < 3 || segments[0] != "v1" {
		return p
	}
	switch segments[1] {
	case "projects", "accounts", "members", "content", "tokens":
		segments[2] = ":id"
		return "/" + strings.Join(segments, "/")
	}
	return p
}
