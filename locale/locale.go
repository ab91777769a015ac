// Package locale holds the Hebrew/English text table used by the ticket page
// and the checkout controller.
package locale

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type Lang string

const (
	Hebrew  Lang = "he"
	English Lang = "en"
)

// StorageKey is the single page-scoped key the selected language is saved under.
const StorageKey = "selectedLanguage"

func ParseLang(s string) (Lang, bool) {
	switch Lang(s) {
	case Hebrew, English:
		return Lang(s), true
	}
	return Hebrew, false
}

// Dir is the text direction attribute for the language.
func (l Lang) Dir() string {
	if l == Hebrew {
		return "rtl"
	}
	return "ltr"
}

func (l Lang) Toggle() Lang {
	if l == Hebrew {
		return English
	}
	return Hebrew
}

// Entry is one translation key in both languages.
type Entry map[Lang]string

type Table struct {
	entries map[string]Entry
}

type document struct {
	Translations map[string]Entry `yaml:"translations"`
}

//go:embed text.yaml
var defaultText []byte

// Default returns the table shipped with the binary.
func Default() (*Table, error) {
	return Load(bytes.NewReader(defaultText))
}

// Load reads a table from YAML (or JSON, which YAML accepts).
func Load(r io.Reader) (*Table, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse translations: %w", err)
	}
	if doc.Translations == nil {
		doc.Translations = map[string]Entry{}
	}
	return &Table{entries: doc.Translations}, nil
}

func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open translations: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Text looks key up for lang and falls back to the literal given at the call
// site. A nil table always returns the fallback.
func (t *Table) Text(key string, lang Lang, fallback string) string {
	if t == nil {
		return fallback
	}
	if e, ok := t.entries[key]; ok {
		if s, ok := e[lang]; ok && s != "" {
			return s
		}
	}
	return fallback
}

// Pick is Text with a fallback per language.
func (t *Table) Pick(key string, lang Lang, fallbackHe, fallbackEn string) string {
	if lang == English {
		return t.Text(key, lang, fallbackEn)
	}
	return t.Text(key, lang, fallbackHe)
}

// Entries returns a copy of the table for serving to the page.
func (t *Table) Entries() map[string]Entry {
	out := make(map[string]Entry)
	if t == nil {
		return out
	}
	for k, e := range t.entries {
		copied := make(Entry, len(e))
		for l, s := range e {
			copied[l] = s
		}
		out[k] = copied
	}
	return out
}

func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatDate renders a date the way he-IL and en-US locales show it.
func FormatDate(t time.Time, lang Lang) string {
	if lang == English {
		return t.Format("1/2/2006")
	}
	return t.Format("2.1.2006")
}
