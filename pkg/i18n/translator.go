// Package i18n renders user-facing messages from YAML catalogues.
//
// A catalogue is a YAML document with one top-level key per language and
// nested message keys below it, addressed with dots ("validation.required").
// Placeholders use the %{name} form. Plural forms live under .zero, .one and
// .other sub-keys. The English catalogue is embedded and loaded by Default.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/handicraft/storefront/pkg/logger"
	"github.com/handicraft/storefront/pkg/validator"
)

const DefaultLanguage = "en"

//go:embed locales/*.yaml
var locales embed.FS

var paramRegex = regexp.MustCompile(`%\{([^}]+)\}`)

// Translator looks up messages by language and dotted key. It is read-only
// after construction and safe for concurrent use.
type Translator struct {
	translations map[string]map[string]any
	defaultLang  string
	logger       *slog.Logger
}

type Option func(*Translator)

// WithDefaultLanguage sets the language used when the requested one is missing.
func WithDefaultLanguage(lang string) Option {
	return func(t *Translator) {
		if lang != "" {
			t.defaultLang = lang
		}
	}
}

// WithLogger logs missing keys at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l.With(logger.Component("i18n"))
		}
	}
}

// New builds a Translator from one or more YAML catalogues. Later catalogues
// override keys of earlier ones.
func New(sources []io.Reader, opts ...Option) (*Translator, error) {
	t := &Translator{
		translations: make(map[string]map[string]any),
		defaultLang:  DefaultLanguage,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, src := range sources {
		var doc map[string]any
		if err := yaml.NewDecoder(src).Decode(&doc); err != nil {
			return nil, errors.Join(ErrFailedToParseYAML, err)
		}
		for lang, val := range doc {
			messages, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: language %q holds %T", ErrInvalidCatalogue, lang, val)
			}
			if t.translations[lang] == nil {
				t.translations[lang] = make(map[string]any)
			}
			merge(t.translations[lang], messages)
		}
	}

	if len(t.translations) == 0 {
		return nil, ErrNoTranslations
	}
	return t, nil
}

// Default returns a Translator over the embedded catalogues.
func Default(opts ...Option) (*Translator, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	sources := make([]io.Reader, 0, len(entries))
	for _, e := range entries {
		f, err := locales.Open("locales/" + e.Name())
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sources = append(sources, f)
	}
	return New(sources, opts...)
}

func (t *Translator) Languages() []string {
	langs := make([]string, 0, len(t.translations))
	for lang := range t.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func (t *Translator) Has(lang, key string) bool {
	_, ok := t.lookup(lang, key)
	return ok
}

// T translates key, substituting params into %{name} placeholders.
// A missing key is returned as is.
func (t *Translator) T(lang, key string, params map[string]any) string {
	tmpl, ok := t.lookup(lang, key)
	if !ok {
		t.logger.Debug("translation missing", slog.String("lang", lang), slog.String("key", key))
		return substitute(key, params)
	}
	return substitute(tmpl, params)
}

// N translates a plural key for count n, with n available as %{count}.
func (t *Translator) N(lang, key string, n int, params map[string]any) string {
	withCount := map[string]any{"count": n}
	for k, v := range params {
		withCount[k] = v
	}

	forms := []string{key + ".other"}
	switch n {
	case 0:
		forms = []string{key + ".zero", key + ".other"}
	case 1:
		forms = []string{key + ".one"}
	}
	for _, form := range forms {
		if tmpl, ok := t.lookup(lang, form); ok {
			return substitute(tmpl, withCount)
		}
	}
	return t.T(lang, key, withCount)
}

// ValidationMessages renders each validation error as a message keyed by
// field. The field placeholder is replaced by its translated label when the
// catalogue has one under "field.<name>".
func (t *Translator) ValidationMessages(lang string, errs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(errs))
	for _, e := range errs {
		params := make(map[string]any, len(e.TranslationValues))
		for k, v := range e.TranslationValues {
			params[k] = v
		}
		if label, ok := t.lookup(lang, "field."+e.Field); ok {
			params["field"] = label
		}

		msg := e.Message
		if e.TranslationKey != "" && t.Has(lang, e.TranslationKey) {
			msg = t.T(lang, e.TranslationKey, params)
		}
		out[e.Field] = append(out[e.Field], msg)
	}
	return out
}

func (t *Translator) lookup(lang, key string) (string, bool) {
	for _, l := range []string{lang, t.defaultLang} {
		messages, ok := t.translations[l]
		if !ok {
			continue
		}
		if s, ok := traverse(messages, key); ok {
			return s, true
		}
	}
	return "", false
}

func traverse(m map[string]any, key string) (string, bool) {
	var cur any = m
	for part := range strings.SplitSeq(key, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = node[part]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func substitute(tmpl string, params map[string]any) string {
	if len(params) == 0 {
		return tmpl
	}
	return paramRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		if v, ok := params[match[2:len(match)-1]]; ok {
			return formatValue(v)
		}
		return match
	})
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
