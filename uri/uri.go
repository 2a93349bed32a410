// Package uri parses and renders the small set of URI shapes vesper's
// diagnostics and vfs package need to name a source location: an
// explicit scheme ("file:///a/b.vsp"), a bare absolute path
// ("/a/b.vsp", implicitly "file"), and a remote host[:port][/path]
// form with no scheme of its own. It is an external collaborator of
// the codegen core, not part of it.
//
// Grounded on horse64's uri32.h/uri.h and the shapes exercised by
// test_uri.c: a leading "/" always means a literal, unescaped file
// path; an explicit "scheme://" prefix percent-decodes the path that
// follows it; anything else is a host, with an optional ":port" and
// an optional "/path" tail.
package uri

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// NoPort is Port's value when the URI names no port, mirroring
// uri32info's negative-port convention for "not set".
const NoPort = -1

// URI is a parsed location, split the way uri32info is in the
// original: protocol, host, port, and path are independent fields
// rather than one opaque string.
type URI struct {
	Protocol string
	Host     string
	Port     int
	Path     string
}

// Parse is ParseEx with no default protocol for a bare host[:port]
// form.
func Parse(s string) (*URI, error) {
	return ParseEx(s, "")
}

// ParseEx parses s, falling back to defaultProtocol only when s names
// a host but no scheme of its own (an explicit scheme in s always
// wins, and a bare absolute path is always "file" regardless of
// defaultProtocol).
func ParseEx(s string, defaultProtocol string) (*URI, error) {
	if s == "" {
		return nil, fmt.Errorf("uri: empty input")
	}

	if scheme, rest, ok := splitScheme(s); ok {
		p, err := url.PathUnescape(rest)
		if err != nil {
			return nil, fmt.Errorf("uri: invalid percent-escape in %q: %w", s, err)
		}
		return &URI{Protocol: scheme, Path: p, Port: NoPort}, nil
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) {
		return &URI{Protocol: "file", Path: s, Port: NoPort}, nil
	}

	return parseHostForm(s, defaultProtocol)
}

// splitScheme reports whether s begins with "scheme://" and, if so,
// returns the scheme and everything after the "://".
func splitScheme(s string) (scheme, rest string, ok bool) {
	idx := strings.Index(s, "://")
	if idx <= 0 {
		return "", "", false
	}
	scheme = s[:idx]
	for _, r := range scheme {
		if !isSchemeChar(r) {
			return "", "", false
		}
	}
	return scheme, s[idx+len("://"):], true
}

func isSchemeChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '+' || r == '.' || r == '-'
}

// parseHostForm parses "host[:port][/path]" with no scheme of its
// own, per uri32_ParseEx's "test.com:20/blubb" / "example.com:443"
// cases: the protocol field is left empty unless defaultProtocol is
// given.
func parseHostForm(s string, defaultProtocol string) (*URI, error) {
	host := s
	p := ""
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		host = s[:idx]
		p = s[idx:]
	}

	port := NoPort
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		portStr := host[idx+1:]
		n, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("uri: invalid port in %q: %w", s, err)
		}
		port = n
		host = host[:idx]
	}

	return &URI{Protocol: defaultProtocol, Host: host, Port: port, Path: p}, nil
}

// Dump renders u back to its canonical string form, percent-encoding
// the path the way uri_Dump does ("file:///code%20blah.h64" for a
// path containing a literal space).
func (u *URI) Dump() string {
	var b strings.Builder
	if u.Protocol != "" {
		b.WriteString(u.Protocol)
		b.WriteString("://")
	}
	if u.Host != "" {
		b.WriteString(u.Host)
		if u.Port != NoPort {
			fmt.Fprintf(&b, ":%d", u.Port)
		}
	}
	b.WriteString(escapePath(u.Path))
	return b.String()
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Normalize returns a copy of u with Path cleaned of "." and ".."
// segments, collapsing "//" the way path.Clean does. It leaves
// Protocol/Host/Port untouched.
func (u *URI) Normalize() *URI {
	out := *u
	if out.Path != "" {
		out.Path = path.Clean(out.Path)
	}
	return &out
}

// Compare reports whether a and b name the same location once both
// are normalized, with case-sensitive path comparison (vesper source
// trees are assumed case-sensitive, matching the POSIX branch of
// uri32_Compare).
func Compare(a, b *URI) bool {
	na, nb := a.Normalize(), b.Normalize()
	return na.Protocol == nb.Protocol &&
		na.Host == nb.Host &&
		na.Port == nb.Port &&
		na.Path == nb.Path
}
