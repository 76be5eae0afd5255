package probe

import "strings"

// Normalize uppercases the URL, strips exactly one leading "HTTPS://" or
// "HTTP://", then strips one leading "WWW.", per spec §4.2. The result is
// the normalized host (name) and the scheme it was discovered under.
func Normalize(raw string) (name string, scheme string) {
	upper := strings.ToUpper(raw)

	switch {
	case strings.HasPrefix(upper, httpsPrefix):
		name = strings.TrimPrefix(upper, httpsPrefix)
		scheme = httpsPrefix
	case strings.HasPrefix(upper, httpPrefix):
		name = strings.TrimPrefix(upper, httpPrefix)
		scheme = httpPrefix
	default:
		name = upper
		scheme = httpPrefix
	}

	name = strings.TrimPrefix(name, wwwPrefix)
	return name, scheme
}

const (
	httpsPrefix = "HTTPS://"
	httpPrefix  = "HTTP://"
	wwwPrefix   = "WWW."
)
