package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeBodyUTF8(t *testing.T) {
	body := []byte("<html><body>Preço total: 45,90 €</body></html>")
	out, err := DecodeBody(body, "text/html; charset=utf-8")
	assert.NoError(t, err)
	assert.Contains(t, out, "Preço total: 45,90 €")
}

func TestDecodeBodyLatin1(t *testing.T) {
	// "Preço" in ISO-8859-1
	body := []byte("<html><body>Pre\xe7o</body></html>")
	out, err := DecodeBody(body, "text/html; charset=iso-8859-1")
	assert.NoError(t, err)
	assert.Contains(t, out, "Preço")
}

func TestBrowserHeaders(t *testing.T) {
	headers := BrowserHeaders(DesktopChrome, "pt")
	assert.Equal(t, DesktopChrome.UserAgent, headers["User-Agent"])
	assert.Equal(t, "pt-PT,pt;q=0.9,en;q=0.8", headers["Accept-Language"])
	assert.NotEmpty(t, headers["Referer"])

	assert.Equal(t, "en-GB,en;q=0.9", AcceptLanguage(""))
	assert.Equal(t, "fr,fr;q=0.9,en;q=0.8", AcceptLanguage("FR"))
	assert.NotEqual(t, DesktopChrome.UserAgent, MacSafariLike.UserAgent)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "Fiat 500 ou similar", CollapseSpaces("  Fiat 500\n\t ou   similar "))
	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", FirstNonEmpty())
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "abc", Preview("abc", 3))
	assert.True(t, LooksLikeMarkup("<!DOCTYPE html><html></html>"))
	assert.False(t, LooksLikeMarkup(`{"rate": 1.1}`))
}
