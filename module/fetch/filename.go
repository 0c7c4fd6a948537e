package fetch

import (
	"net/url"
	"strings"
)

// DeriveFilename returns the last element of the URL path with any query and
// fragment removed. The name is taken from the URL as written, so neither
// percent-encoding nor literal spaces are rewritten. A URL without a path
// element yields "".
//
//	https://example.org/data/sample.csv?v=2  ->  sample.csv
//	https://example.org/data/my file.csv     ->  my file.csv
//	https://example.org                      ->  ""
func DeriveFilename(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	// scheme://host with nothing after the authority has no file name
	if u, err := url.Parse(p); err == nil && u.Host != "" && strings.Trim(u.EscapedPath(), "/") == "" {
		return ""
	}

	p = strings.TrimRight(p, "/")
	name := p[strings.LastIndex(p, "/")+1:]
	if name == "." || name == ".." {
		return ""
	}
	return name
}
