// Package i18n renders diagnostic messages from codes and parameters.
package i18n

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Translator retrieves localized messages for diagnostic codes.
// data provides metadata to embed in the message (for example "expected" or
// "key"); placeholders are written as {name}.
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var catalog = map[string]map[string]string{
	"en": {
		"invalid_type":        "expected {expected}, got {got}",
		"required":            "missing required property \"{key}\"",
		"unknown_key":         "unknown key \"{key}\"",
		"additional_property": "additional property \"{key}\" is not allowed",
		"property_name":       "property name \"{key}\" is not valid",
		"duplicate_key":       "duplicate key \"{key}\"",
		"too_small":           "must be {cmp} {limit}, got {got}",
		"too_big":             "must be {cmp} {limit}, got {got}",
		"too_short":           "must have at least {limit} {unit}, got {got}",
		"too_long":            "must have at most {limit} {unit}, got {got}",
		"pattern":             "{got} does not match pattern \"{pattern}\"",
		"invalid_enum":        "must be one of {allowed}, got {got}",
		"const":               "must be {expected}, got {got}",
		"multiple_of":         "{got} is not a multiple of {divisor}",
		"unique_items":        "items {first} and {second} are equal",
		"contains":            "no item matches the required schema",
		"union_none":          "does not match any of the {count} allowed alternatives ({details})",
		"union_ambiguous":     "matches {count} oneOf alternatives ({matched}), expected exactly one",
		"not":                 "must not match the disallowed schema",
		"not_allowed":         "no value is allowed here",
		"deprecated":          "deprecated{since}{details}",
		"parse_error":         "{message}",
		"truncated":           "output truncated after {limit} errors",
	},
	"ja": {
		"invalid_type":        "型が不正です ({expected} が必要ですが {got} です)",
		"required":            "必須プロパティ \"{key}\" が不足しています",
		"unknown_key":         "未知のキー \"{key}\" です",
		"additional_property": "追加プロパティ \"{key}\" は許可されていません",
		"duplicate_key":       "キー \"{key}\" が重複しています",
		"too_small":           "{cmp} {limit} である必要があります ({got})",
		"too_big":             "{cmp} {limit} である必要があります ({got})",
		"too_short":           "短すぎます (最小 {limit}, 実際 {got})",
		"too_long":            "長すぎます (最大 {limit}, 実際 {got})",
		"pattern":             "{got} はパターン \"{pattern}\" に一致しません",
		"invalid_enum":        "{allowed} のいずれかである必要があります ({got})",
		"property_name":       "プロパティ名 \"{key}\" は不正です",
		"const":               "{expected} である必要があります ({got})",
		"multiple_of":         "{got} は {divisor} の倍数ではありません",
		"unique_items":        "要素 {first} と {second} が重複しています",
		"contains":            "条件を満たす要素がありません",
		"union_none":          "{count} 個の候補のいずれにも一致しません ({details})",
		"union_ambiguous":     "oneOf の候補 {count} 個 ({matched}) に一致しました (1 個のみ許可)",
		"not":                 "禁止されたスキーマに一致してはいけません",
		"not_allowed":         "ここには値を指定できません",
		"parse_error":         "解析エラー: {message}",
		"truncated":           "{limit} 件で打ち切られました",
		"deprecated":          "非推奨です{since}{details}",
	},
}

// Language returns the catalogue language.
func (t dictTranslator) Language() string { return t.lang }

// Language identifies the language tr renders. Translators that do not
// report one are identified by their type.
func Language(tr Translator) string {
	if l, ok := tr.(interface{ Language() string }); ok {
		return l.Language()
	}
	return fmt.Sprintf("%T", tr)
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	tmpl, ok := catalog[t.lang][code]
	if !ok {
		tmpl, ok = catalog["en"][code]
	}
	if !ok {
		return code
	}
	return expand(tmpl, data)
}

func expand(tmpl string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// New returns the built-in Translator for lang ("en" or "ja"); other values
// fall back to English.
func New(lang string) Translator {
	if _, ok := catalog[lang]; !ok {
		lang = "en"
	}
	return dictTranslator{lang: lang}
}

type holder struct{ tr Translator }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{tr: New("en")}) }

// SetLanguage switches the default Translator language ("en"/"ja").
func SetLanguage(lang string) { current.Store(&holder{tr: New(lang)}) }

// SetTranslator replaces the default Translator. nil restores English.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = New("en")
	}
	current.Store(&holder{tr: tr})
}

// Default returns the current default Translator.
func Default() Translator { return current.Load().tr }

// T fetches a message for the given code using the default Translator.
func T(code string, data map[string]string) string { return Default().Message(code, data) }
