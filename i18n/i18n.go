// Package i18n resolves user visible strings. Keys are the English source
// text, so a missing translation shows the untranslated text.
package i18n

import (
	"embed"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/goccy/go-json"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// Translator is the accessor handed to page components.
type Translator interface {
	T(key string) string
}

// Catalog is one language dictionary. It is parsed on the first lookup and
// never reparsed.
type Catalog struct {
	raw  []byte
	once sync.Once
	dict map[string]string
	err  error
	Lang string
}

// NewCatalog wraps an unparsed JSON object of key to translation.
func NewCatalog(lang string, raw []byte) *Catalog {
	return &Catalog{Lang: lang, raw: raw}
}

func (c *Catalog) parse() {
	c.once.Do(func() {
		if len(c.raw) == 0 {
			c.err = apperrors.New(apperrors.ErrClassParsing, "load translations", "dictionary for "+c.Lang+" is empty")
			return
		}
		var dict map[string]string
		if err := json.Unmarshal(c.raw, &dict); err != nil {
			c.err = apperrors.Wrap(apperrors.ErrClassParsing, "load translations", err).
				WithContext("lang", c.Lang)
			return
		}
		c.dict = dict
	})
}

// Err reports whether the dictionary can be parsed.
func (c *Catalog) Err() error {
	c.parse()
	return c.err
}

// T returns the translation of key or key itself. An empty translation
// counts as missing. A malformed dictionary panics: it is a startup
// precondition checked by Bundle.
func (c *Catalog) T(key string) string {
	c.parse()
	if c.err != nil {
		panic(c.err)
	}
	if v := c.dict[key]; v != "" {
		return v
	}
	return key
}

// JSON returns the dictionary as embedded into the page.
func (c *Catalog) JSON() string {
	return string(c.raw)
}

// Bundle holds the catalogs of every shipped language.
type Bundle struct {
	catalogs map[string]*Catalog
	tags     []language.Tag
	fallback string
	matcher  language.Matcher
}

// Load reads all embedded dictionaries and validates them.
// fallback is used for unknown languages and must be one of them.
func Load(fallback string) (*Bundle, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrClassParsing, "load translations", err)
	}
	raw := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrClassParsing, "load translations", err)
		}
		raw[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return NewBundle(fallback, raw)
}

// NewBundle builds a bundle from raw dictionaries keyed by language code.
func NewBundle(fallback string, raw map[string][]byte) (*Bundle, error) {
	b := &Bundle{catalogs: make(map[string]*Catalog, len(raw)), fallback: fallback}

	langs := make([]string, 0, len(raw))
	for lang := range raw {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	// the fallback goes first so the matcher prefers it on ties
	sort.SliceStable(langs, func(i, j int) bool { return langs[i] == fallback && langs[j] != fallback })

	for _, lang := range langs {
		c := NewCatalog(lang, raw[lang])
		if err := c.Err(); err != nil {
			return nil, err
		}
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrClassParsing, "load translations", err).
				WithContext("lang", lang)
		}
		b.catalogs[lang] = c
		b.tags = append(b.tags, tag)
	}
	if _, ok := b.catalogs[fallback]; !ok {
		return nil, apperrors.New(apperrors.ErrClassConfig, "load translations", "no dictionary for default language "+fallback)
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

// Catalog returns the dictionary of lang or the fallback one.
func (b *Bundle) Catalog(lang string) *Catalog {
	if c, ok := b.catalogs[lang]; ok {
		return c
	}
	return b.catalogs[b.fallback]
}

// Supported reports whether lang has a dictionary.
func (b *Bundle) Supported(lang string) bool {
	_, ok := b.catalogs[lang]
	return ok
}

// Languages lists the shipped language codes, fallback first.
func (b *Bundle) Languages() []string {
	out := make([]string, 0, len(b.tags))
	for _, t := range b.tags {
		out = append(out, t.String())
	}
	return out
}

// Match picks the best shipped language for an Accept-Language header.
func (b *Bundle) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.fallback
	}
	return b.tags[idx].String()
}
