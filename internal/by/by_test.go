package by

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Save", "'Save'"},
		{"", "''"},
		{"Don't", `"Don't"`},
		{`say "hi"`, `'say "hi"'`},
		{`it's "x"`, `concat('it', "'", 's "x"')`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Literal(tt.in), tt.in)
	}
}

// unquote evaluates the subset of XPath string expressions Literal produces.
func unquote(t *rapid.T, expr string) string {
	if strings.HasPrefix(expr, "concat(") {
		body := strings.TrimSuffix(strings.TrimPrefix(expr, "concat("), ")")
		var out strings.Builder
		for len(body) > 0 {
			q := body[0]
			end := strings.IndexByte(body[1:], q)
			if end < 0 {
				t.Fatalf("unterminated literal in %q", expr)
			}
			out.WriteString(body[1 : end+1])
			body = strings.TrimPrefix(body[end+2:], ", ")
		}
		return out.String()
	}
	q := expr[0]
	if expr[len(expr)-1] != q {
		t.Fatalf("mismatched quotes in %q", expr)
	}
	inner := expr[1 : len(expr)-1]
	if strings.IndexByte(inner, q) >= 0 {
		t.Fatalf("quote %c leaks into %q", q, expr)
	}
	return inner
}

func TestLiteralRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringOfN(rapid.SampledFrom([]rune{'a', 'b', ' ', '\'', '"', '.', 'z'}), 0, 20, -1).Draw(t, "s")
		assert.Equal(t, s, unquote(t, Literal(s)))
	})
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "button Save", Button("Save").String())
	assert.Equal(t, "css selector pre#out pre", CSS("pre#out pre").String())
	assert.Equal(t, "xpath: //a", Locator{Kind: KindXPath, Value: "//a"}.String())
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, KindCSS, CSS("#x").Kind)
	assert.Equal(t, "//*[@path='/numExecutors']", Path("/numExecutors").Value)
	assert.Equal(t, "//*[@id='main']", ID("main").Value)
	assert.Contains(t, Button("Yes").Value, "//button[normalize-space(.)='Yes'")
	assert.Contains(t, Button("Yes").Value, "@type='submit'")
	assert.Contains(t, Link("Delete Agent").Value, "normalize-space(.)='Delete Agent'")
	assert.Contains(t, RadioButton("List View").Value, "@type='radio'")
	assert.Contains(t, Checkbox("useincluderegex").Value, "@type='checkbox'")
	assert.Contains(t, Input("name").Value, "//input[@name='name'")
	assert.Equal(t, KindXPath, XPathf("//div[%d]", 2).Kind)
	assert.Equal(t, "//div[2]", XPathf("//div[%d]", 2).Value)
}
