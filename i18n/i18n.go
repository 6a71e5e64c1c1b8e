// Package i18n holds the UI strings for each supported language and the
// logic for choosing which language to show.
package i18n

import (
	_ "embed"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/yaml.v3"
)

var logger = loggo.GetLogger("kalcame.i18n")

// Fallback is the language every lookup falls back to.
const Fallback = "en"

// Languages lists the supported codes in switcher order.
var Languages = []string{"en", "es", "fr", "de"}

// ErrUnsupported is returned when a language code has no translations.
const ErrUnsupported = errors.ConstError("unsupported language")

//go:embed translations.yaml
var builtin []byte

// Localizer is what the UI consumes.
type Localizer interface {
	Language() string
	SetLanguage(code string) error
	T(key string) string
}

// Catalog maps language code to key to text.
type Catalog map[string]map[string]string

// ParseCatalog reads a YAML catalog. The fallback language must be present.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Annotate(err, "parsing translations")
	}
	if _, ok := c[Fallback]; !ok {
		return nil, errors.NotValidf("catalog without %q", Fallback)
	}
	return c, nil
}

// Builtin returns the embedded catalog.
func Builtin() Catalog {
	c, err := ParseCatalog(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Has reports whether the catalog has translations for code.
func (c Catalog) Has(code string) bool {
	_, ok := c[code]
	return ok
}

// Lookup resolves key in lang, then in the fallback language. A key missing
// from both comes back as itself so gaps are visible on screen.
func (c Catalog) Lookup(lang, key string) string {
	if s, ok := c[lang][key]; ok {
		return s
	}
	if s, ok := c[Fallback][key]; ok {
		return s
	}
	logger.Debugf("missing translation %q", key)
	return key
}

// Normalize reduces a locale such as "es_ES.UTF-8" or "fr-CA" to its
// language code.
func Normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "_-.@"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}

// Detect picks the starting language: the saved preference, then the
// environment locale ($LC_ALL, $LANG), then the fallback.
func Detect(c Catalog, saved string, getenv func(string) string) string {
	if saved != "" && c.Has(saved) {
		return saved
	}
	if getenv != nil {
		for _, name := range []string{"LC_ALL", "LANG"} {
			if code := Normalize(getenv(name)); code != "" && c.Has(code) {
				return code
			}
		}
	}
	return Fallback
}

var names = map[string]string{
	"en": "English",
	"es": "Español",
	"fr": "Français",
	"de": "Deutsch",
}

// Name returns the language's name in that language, or code itself.
func Name(code string) string {
	if n, ok := names[code]; ok {
		return n
	}
	return code
}

// Next returns the language after code in switcher order.
func Next(code string) string {
	for i, l := range Languages {
		if l == code {
			return Languages[(i+1)%len(Languages)]
		}
	}
	return Languages[0]
}
