package utils

import (
	"strings"
	"testing"

	"coldreach/models"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	t.Run("substitutes variables", func(t *testing.T) {
		out := RenderTemplate("Hi {{firstName}}, greetings from {{company}}",
			map[string]string{"firstName": "Ana", "company": "Acme"})
		assert.Equal(t, "Hi Ana, greetings from Acme", out)
	})

	t.Run("tolerates whitespace inside braces", func(t *testing.T) {
		out := RenderTemplate("Hi {{ firstName }}", map[string]string{"firstName": "Ana"})
		assert.Equal(t, "Hi Ana", out)
	})

	t.Run("missing variable renders empty", func(t *testing.T) {
		out := RenderTemplate("Hi {{firstName}}!", map[string]string{})
		assert.Equal(t, "Hi !", out)
	})

	t.Run("spintax picks one alternative", func(t *testing.T) {
		out := RenderTemplate("{Hi|Hello|Hey} there", nil)
		assert.Contains(t, []string{"Hi there", "Hello there", "Hey there"}, out)
	})

	t.Run("nested spintax resolves fully", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			out := RenderTemplate("{Good {morning|evening}|Hello}", nil)
			assert.Contains(t, []string{"Good morning", "Good evening", "Hello"}, out)
		}
	})

	t.Run("variables resolve before spintax", func(t *testing.T) {
		out := RenderTemplate("{Hi|Hello} {{firstName}}",
			map[string]string{"firstName": "Ana"})
		assert.True(t, out == "Hi Ana" || out == "Hello Ana", out)
	})

	t.Run("empty template", func(t *testing.T) {
		assert.Equal(t, "", RenderTemplate("", map[string]string{"a": "b"}))
	})
}

func TestTemplateVars(t *testing.T) {
	lead := &models.Lead{
		Email:     "ana@acme.test",
		FirstName: "Ana",
		Company:   "Acme",
		Metadata:  map[string]string{"painPoint": "deliverability", "company": "Acme Labs"},
	}

	vars := TemplateVars(lead)
	assert.Equal(t, "ana@acme.test", vars["email"])
	assert.Equal(t, "Ana", vars["firstName"])
	assert.Equal(t, "deliverability", vars["painPoint"])
	// metadata wins over identity fields
	assert.Equal(t, "Acme Labs", vars["company"])
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@acme.test", NormalizeEmail("  Ana@Acme.TEST "))
}

func TestInjectTracking(t *testing.T) {
	const baseURL = "https://app.test"
	const token = "tok-123"

	t.Run("appends pixel and unsubscribe footer", func(t *testing.T) {
		out := InjectTracking("<p>Hello</p>", baseURL, token)
		assert.Contains(t, out, TrackingPixelURL(baseURL, token))
		assert.Contains(t, out, UnsubscribeURL(baseURL, token))
		assert.True(t, strings.HasPrefix(out, "<p>Hello</p>"))
	})

	t.Run("rewrites external links", func(t *testing.T) {
		out := InjectTracking(`<a href="https://example.com/pricing">pricing</a>`, baseURL, token)
		assert.Contains(t, out, ClickTrackURL(baseURL, token, "https://example.com/pricing"))
		assert.NotContains(t, out, `href="https://example.com/pricing"`)
	})

	t.Run("leaves own links alone", func(t *testing.T) {
		link := baseURL + "/tracking/unsubscribe/" + token
		out := InjectTracking(`<a href="`+link+`">Unsubscribe</a>`, baseURL, token)
		assert.Contains(t, out, `href="`+link+`"`)
	})
}
