package token

import "testing"

func TestCreateToken(t *testing.T) {
	tests := []struct {
		name      string
		tokenType TokenType
		want      string
	}{
		{"assign", ASSIGN, "="},
		{"plus assign", PLUS_ASSIGN, "+="},
		{"left bracket", LBRACKET, "["},
		{"dot", DOT, "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateToken(tt.tokenType, 1, 0)
			if got.TokenType != tt.tokenType || got.Lexeme != tt.want {
				t.Errorf("CreateToken(%v) = %+v, want lexeme %q", tt.tokenType, got, tt.want)
			}
		})
	}
}

func TestCreateLiteralToken(t *testing.T) {
	tok := CreateLiteralToken(INT, int64(42), "42", 3, 10)
	if tok.Literal != int64(42) || tok.Lexeme != "42" || tok.Line != 3 || tok.Column != 10 {
		t.Errorf("CreateLiteralToken() = %+v", tok)
	}
}

func TestKeyWordsCoverFullSurface(t *testing.T) {
	for _, kw := range []string{"do", "rescue", "finally", "with", "raise", "await", "import", "class", "new", "given", "has_attr"} {
		if _, ok := KeyWords[kw]; !ok {
			t.Errorf("keyword %q missing from KeyWords table", kw)
		}
	}
}

func TestTokenString(t *testing.T) {
	tok := CreateLiteralToken(IDENTIFIER, nil, "x", 0, 0)
	if got := tok.String(); got == "" {
		t.Errorf("Token.String() returned empty string")
	}
}
