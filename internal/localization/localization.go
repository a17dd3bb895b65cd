package localization

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed translations/*.yaml
var translationsFS embed.FS

const DefaultLang = "ru"

var languages = []string{"ru", "en"}

// pluralRules выбирает форму слова для числа n.
var pluralRules = map[string]func(n int) string{
	"ru": func(n int) string {
		n10, n100 := n%10, n%100
		switch {
		case n10 == 1 && n100 != 11:
			return "one"
		case n10 >= 2 && n10 <= 4 && (n100 < 12 || n100 > 14):
			return "few"
		default:
			return "many"
		}
	},
	"en": func(n int) string {
		if n == 1 {
			return "one"
		}
		return "other"
	},
}

type Service struct {
	translations map[string]map[string]interface{}
}

func NewService() (*Service, error) {
	s := &Service{
		translations: make(map[string]map[string]interface{}),
	}

	for _, lang := range languages {
		data, err := translationsFS.ReadFile(fmt.Sprintf("translations/%s.yaml", lang))
		if err != nil {
			return nil, fmt.Errorf("read %s translations: %w", lang, err)
		}

		var translations map[string]interface{}
		if err := yaml.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("parse %s translations: %w", lang, err)
		}

		s.translations[lang] = translations
	}

	return s, nil
}

func (s *Service) Supports(lang string) bool {
	_, ok := s.translations[lang]
	return ok
}

// Get retrieves a translation by key for the given language
// Key format: "section.subsection.key" or "section.key"
// Params can contain placeholders like {{name}}, {{amount}}, etc.
func (s *Service) Get(lang, key string, params map[string]interface{}) string {
	text, ok := s.lookup(lang, key).(string)
	if !ok {
		return key
	}

	return s.replacePlaceholders(text, params)
}

// Plural берёт форму из plural.<key> по правилу языка и подставляет {{n}}.
func (s *Service) Plural(lang, key string, n int) string {
	lang = s.resolve(lang)

	forms, ok := s.lookup(lang, "plural."+key).(map[string]interface{})
	if !ok {
		return fmt.Sprintf("%d", n)
	}

	rule, ok := pluralRules[lang]
	if !ok {
		rule = pluralRules[DefaultLang]
	}

	form, ok := forms[rule(n)].(string)
	if !ok {
		if form, ok = forms["other"].(string); !ok {
			return fmt.Sprintf("%d", n)
		}
	}

	return s.replacePlaceholders(form, map[string]interface{}{"n": n})
}

// FormatDate длинный формат даты, например "5 марта 2026 г.".
func (s *Service) FormatDate(lang string, t time.Time) string {
	months, ok := s.lookup(lang, "date.months").([]interface{})
	if !ok || len(months) != 12 {
		return t.Format("2006-01-02")
	}

	return s.Get(lang, "date.format", map[string]interface{}{
		"day":   t.Day(),
		"month": months[t.Month()-1],
		"year":  t.Year(),
	})
}

func (s *Service) resolve(lang string) string {
	if _, ok := s.translations[lang]; ok {
		return lang
	}
	return DefaultLang
}

func (s *Service) lookup(lang, key string) interface{} {
	var current interface{} = s.translations[s.resolve(lang)]

	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[part]
	}

	return current
}

func (s *Service) replacePlaceholders(text string, params map[string]interface{}) string {
	if params == nil {
		return text
	}

	result := text
	for key, value := range params {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, fmt.Sprint(value))
	}

	return result
}
