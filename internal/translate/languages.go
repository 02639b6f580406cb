package translate

import "sort"

// SupportedLanguages is the fixed set of IETF-style language tags the
// service accepts, with display names for clients that render pickers.
var SupportedLanguages = map[string]string{
	"en-US": "English",
	"es-ES": "Spanish",
	"fr-FR": "French",
	"de-DE": "German",
	"it-IT": "Italian",
	"pt-PT": "Portuguese",
	"zh-CN": "Chinese (Simplified)",
	"ja-JP": "Japanese",
	"ko-KR": "Korean",
	"hi-IN": "Hindi",
	"ar-SA": "Arabic",
}

// LanguageSupported reports whether tag is in the fixed set.
func LanguageSupported(tag string) bool {
	_, ok := SupportedLanguages[tag]
	return ok
}

// LanguageTags returns the supported tags in sorted order, for schema
// generation and stable output.
func LanguageTags() []string {
	tags := make([]string, 0, len(SupportedLanguages))
	for tag := range SupportedLanguages {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
