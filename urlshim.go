package lagonlike

import (
	"fmt"
	"net/url"
)

// URL is a web-API-shaped view over a parsed absolute URL: field names
// and formatting follow the browser URL interface (Protocol carries a
// trailing colon, Search a leading question mark) so handler code can
// use the idioms it expects.
type URL struct {
	Href     string
	Protocol string
	Username string
	Password string
	Host     string
	Hostname string
	Port     string
	Pathname string
	Search   string
	Hash     string

	u *url.URL
}

// ParseURL parses raw as an absolute URL.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("url %q is not absolute", raw)
	}

	out := &URL{
		Href:     u.String(),
		Protocol: u.Scheme + ":",
		Host:     u.Host,
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Pathname: u.EscapedPath(),
		u:        u,
	}

	if out.Pathname == "" {
		out.Pathname = "/"
	}
	if u.RawQuery != "" {
		out.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out.Hash = "#" + u.Fragment
	}
	if u.User != nil {
		out.Username = u.User.Username()
		out.Password, _ = u.User.Password()
	}

	return out, nil
}

// SearchParams returns the parsed query parameters.
func (u *URL) SearchParams() url.Values {
	return u.u.Query()
}

func (u *URL) String() string {
	return u.Href
}
