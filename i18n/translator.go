package i18n

import "github.com/juju/errors"

// Translator is the Localizer used by the app. It is not safe for
// concurrent use; the UI goroutine owns it.
type Translator struct {
	catalog Catalog
	lang    string
	prefs   *Prefs
}

// NewTranslator starts in lang. prefs may be nil, in which case language
// changes are not persisted.
func NewTranslator(c Catalog, lang string, prefs *Prefs) *Translator {
	if !c.Has(lang) {
		lang = Fallback
	}
	return &Translator{catalog: c, lang: lang, prefs: prefs}
}

func (t *Translator) Language() string { return t.lang }

// SetLanguage switches language and saves the choice. A failed save is
// logged and does not undo the switch; only an unknown code is an error.
func (t *Translator) SetLanguage(code string) error {
	if !t.catalog.Has(code) {
		return errors.Annotatef(ErrUnsupported, "%q", code)
	}
	if code == t.lang {
		return nil
	}
	t.lang = code
	logger.Infof("language set to %s", code)
	if t.prefs == nil {
		return nil
	}
	if err := t.prefs.SaveLanguage(code); err != nil {
		logger.Warningf("language %s not saved: %v", code, err)
	}
	return nil
}

func (t *Translator) T(key string) string {
	return t.catalog.Lookup(t.lang, key)
}
