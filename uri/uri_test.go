package uri

import "testing"

func TestParseExplicitFileSchemeDecodesPath(t *testing.T) {
	u, err := Parse("file:///a%20b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Protocol != "file" {
		t.Fatalf("Protocol = %q, want file", u.Protocol)
	}
	if u.Path != "/a b" {
		t.Fatalf("Path = %q, want \"/a b\"", u.Path)
	}
}

func TestParseBarePathLeavesEscapesLiteral(t *testing.T) {
	u, err := Parse("/a%20b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Protocol != "file" {
		t.Fatalf("Protocol = %q, want file", u.Protocol)
	}
	if u.Path != "/a%20b" {
		t.Fatalf("Path = %q, want the escape left untouched", u.Path)
	}
}

func TestParseHostPortWithNoProtocol(t *testing.T) {
	u, err := Parse("test.com:20/blubb")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Protocol != "" {
		t.Fatalf("Protocol = %q, want empty", u.Protocol)
	}
	if u.Host != "test.com" {
		t.Fatalf("Host = %q, want test.com", u.Host)
	}
	if u.Port != 20 {
		t.Fatalf("Port = %d, want 20", u.Port)
	}
	if u.Path != "/blubb" {
		t.Fatalf("Path = %q, want /blubb", u.Path)
	}
}

func TestParseExApplesDefaultProtocolToHostForm(t *testing.T) {
	u, err := ParseEx("example.com:443", "https")
	if err != nil {
		t.Fatalf("ParseEx: %v", err)
	}
	if u.Protocol != "https" {
		t.Fatalf("Protocol = %q, want https", u.Protocol)
	}
	if u.Host != "example.com" || u.Port != 443 {
		t.Fatalf("Host/Port = %q/%d, want example.com/443", u.Host, u.Port)
	}
}

func TestParseExExplicitSchemeWinsOverDefault(t *testing.T) {
	u, err := ParseEx("http://blubb/", "https")
	if err != nil {
		t.Fatalf("ParseEx: %v", err)
	}
	if u.Protocol != "http" {
		t.Fatalf("Protocol = %q, want http (explicit scheme wins)", u.Protocol)
	}
}

func TestDumpEscapesLiteralSpace(t *testing.T) {
	u, err := Parse("/code blah.h64")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := u.Dump()
	want := "file:///code%20blah.h64"
	if got != want {
		t.Fatalf("Dump() = %q, want %q", got, want)
	}
}

func TestNormalizeCollapsesDotSegments(t *testing.T) {
	u := &URI{Protocol: "file", Path: "/a/./b/../c", Port: NoPort}
	got := u.Normalize().Path
	if got != "/a/c" {
		t.Fatalf("Normalize().Path = %q, want /a/c", got)
	}
}

func TestCompareIgnoresUnnormalizedDifferences(t *testing.T) {
	a := &URI{Protocol: "file", Path: "/a/./b", Port: NoPort}
	b := &URI{Protocol: "file", Path: "/a/b", Port: NoPort}
	if !Compare(a, b) {
		t.Fatalf("expected %+v and %+v to compare equal after normalization", a, b)
	}
}

func TestCompareIsCaseSensitiveOnPath(t *testing.T) {
	a := &URI{Protocol: "file", Path: "/A.vsp", Port: NoPort}
	b := &URI{Protocol: "file", Path: "/a.vsp", Port: NoPort}
	if Compare(a, b) {
		t.Fatalf("expected case-differing paths not to compare equal")
	}
}
