package i18n

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Prefs persists user preferences to a small YAML file.
type Prefs struct {
	Path string
}

type prefsFile struct {
	Language string `yaml:"language,omitempty"`
}

// Language returns the saved language, or "" when nothing is saved.
func (p *Prefs) Language() (string, error) {
	data, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Annotatef(err, "reading %s", p.Path)
	}
	var f prefsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", errors.Annotatef(err, "parsing %s", p.Path)
	}
	return f.Language, nil
}

// SaveLanguage writes code, creating the parent directory if needed.
func (p *Prefs) SaveLanguage(code string) error {
	data, err := yaml.Marshal(prefsFile{Language: code})
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return errors.Annotatef(err, "creating %s", filepath.Dir(p.Path))
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotatef(err, "writing %s", tmp)
	}
	return errors.Trace(os.Rename(tmp, p.Path))
}
