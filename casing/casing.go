package casing

import (
	"fmt"
	"strings"
	"unicode"
)

type CaseType int8

const (
	DefaultCase CaseType = iota
	SnakeCase
	KebabCase
	CamelCase
	PascalCase
)

func Parse(name string) (CaseType, error) {
	switch strings.ToLower(name) {
	case "", "default", "none":
		return DefaultCase, nil
	case "snake":
		return SnakeCase, nil
	case "kebab":
		return KebabCase, nil
	case "camel":
		return CamelCase, nil
	case "pascal":
		return PascalCase, nil
	default:
		return DefaultCase, fmt.Errorf("%s: unknown casing", name)
	}
}

func To(to CaseType, str string) string {
	switch to {
	case SnakeCase:
		str = ToSnake(str)
	case KebabCase:
		str = ToKebab(str)
	case CamelCase:
		str = ToCamel(str)
	case PascalCase:
		str = ToPascal(str)
	default:
	}
	return str
}

func ToSnake(str string) string {
	return join(Words(str), "_")
}

func ToKebab(str string) string {
	return join(Words(str), "-")
}

func ToCamel(str string) string {
	words := Words(str)
	for i := range words {
		words[i] = strings.ToLower(words[i])
		if i > 0 {
			words[i] = title(words[i])
		}
	}
	return strings.Join(words, "")
}

func ToPascal(str string) string {
	words := Words(str)
	for i := range words {
		words[i] = title(strings.ToLower(words[i]))
	}
	return strings.Join(words, "")
}

// Words splits str on separators (space, hyphen, underscore) and on case
// transitions. A run of upper case letters stays one word, except for its
// last letter when a lower case letter follows ("XMLName" gives XML, Name).
func Words(str string) []string {
	var (
		words []string
		word  []rune
		runes = []rune(str)
	)
	flush := func() {
		if len(word) > 0 {
			words = append(words, string(word))
			word = word[:0]
		}
	}
	for i, r := range runes {
		if isSep(r) || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(word) > 0 {
			prev := word[len(word)-1]
			switch {
			case !unicode.IsUpper(prev):
				flush()
			case i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			default:
			}
		}
		word = append(word, r)
	}
	flush()
	return words
}

func join(words []string, sep string) string {
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}
	return strings.Join(words, sep)
}

func title(str string) string {
	if str == "" {
		return str
	}
	rs := []rune(str)
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}

const (
	hyphen     = '-'
	space      = ' '
	underscore = '_'
)

func isSep(r rune) bool {
	return r == hyphen || r == underscore || r == space
}
