package tutor

import (
	"fmt"
	"strings"
)

// Language is one of the languages the tutor can speak or teach
type Language string

const (
	Spanish    Language = "Spanish"
	French     Language = "French"
	German     Language = "German"
	Japanese   Language = "Japanese"
	Chinese    Language = "Chinese"
	Italian    Language = "Italian"
	Portuguese Language = "Portuguese"
	English    Language = "English"
	Korean     Language = "Korean"
	Hindi      Language = "Hindi"
)

var languages = []Language{
	Spanish, French, German, Japanese, Chinese,
	Italian, Portuguese, English, Korean, Hindi,
}

// Languages returns every supported language in display order
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// ParseLanguage matches a language name case-insensitively
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, lang := range languages {
		if strings.EqualFold(string(lang), s) {
			return lang, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Valid reports whether l is in the supported set
func (l Language) Valid() bool {
	for _, lang := range languages {
		if lang == l {
			return true
		}
	}
	return false
}

// Proficiency is the learner's level in the target language
type Proficiency string

const (
	Beginner     Proficiency = "beginner"
	Intermediate Proficiency = "intermediate"
	Advanced     Proficiency = "advanced"
)

// Proficiencies returns the levels from lowest to highest
func Proficiencies() []Proficiency {
	return []Proficiency{Beginner, Intermediate, Advanced}
}

// ParseProficiency matches a level name case-insensitively
func ParseProficiency(s string) (Proficiency, error) {
	s = strings.TrimSpace(s)
	for _, p := range Proficiencies() {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported proficiency %q", s)
}

// Valid reports whether p is a known level
func (p Proficiency) Valid() bool {
	switch p {
	case Beginner, Intermediate, Advanced:
		return true
	}
	return false
}

// Settings are the parameters a tutoring session is opened with
type Settings struct {
	Native Language
	Target Language
	Level  Proficiency
}

// DefaultSettings teaches Spanish to an English-speaking beginner
func DefaultSettings() Settings {
	return Settings{
		Native: English,
		Target: Spanish,
		Level:  Beginner,
	}
}

// Validate checks every field against its closed set
func (s Settings) Validate() error {
	if !s.Native.Valid() {
		return fmt.Errorf("native language: unsupported language %q", s.Native)
	}
	if !s.Target.Valid() {
		return fmt.Errorf("target language: unsupported language %q", s.Target)
	}
	if !s.Level.Valid() {
		return fmt.Errorf("level: unsupported proficiency %q", s.Level)
	}
	return nil
}
