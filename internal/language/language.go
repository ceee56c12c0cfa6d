package language

import (
	"strings"

	"golang.org/x/text/language"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms and common shorthands
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "espanol"}},
	{"fr", "fra", "fre", "French", []string{"french", "francais"}},
	{"de", "deu", "ger", "German", []string{"german", "deutsch"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese", "jp"}},
	{"ko", "kor", "", "Korean", []string{"korean", "kr"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"tr", "tur", "", "Turkish", []string{"turkish"}},
	{"th", "tha", "", "Thai", []string{"thai"}},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese"}},
}

const (
	Simplified  = "zh-CN"
	Traditional = "zh-TW"
	Unknown     = "unknown"
)

// chineseVariants maps Chinese script/region spellings onto the two variants.
var chineseVariants = map[string]string{
	"zh":      Simplified,
	"zho":     Simplified,
	"chi":     Simplified,
	"chinese": Simplified,
	"zh-cn":   Simplified,
	"zh-sg":   Simplified,
	"zh-hans": Simplified,
	"zhs":     Simplified,
	"chs":     Simplified,
	"zh-tw":   Traditional,
	"zh-hk":   Traditional,
	"zh-mo":   Traditional,
	"zh-hant": Traditional,
	"zht":     Traditional,
	"cht":     Traditional,
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Normalize maps any recognized code, name or BCP 47 tag to the pipeline's
// canonical form: ISO 639-1 for most languages, zh-CN or zh-TW for Chinese.
// Unrecognized input is returned lowercased; empty input returns "".
func Normalize(code string) string {
	cleaned := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "_", "-")))
	if cleaned == "" || cleaned == "und" {
		return ""
	}
	if v, ok := chineseVariants[cleaned]; ok {
		return v
	}
	if e := lookup(cleaned); e != nil {
		if e.code2 == "zh" {
			return Simplified
		}
		return e.code2
	}
	tag, err := language.Parse(cleaned)
	if err != nil {
		return cleaned
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return cleaned
	}
	if base.String() == "zh" {
		script, _ := tag.Script()
		region, _ := tag.Region()
		if script.String() == "Hant" || region.String() == "TW" || region.String() == "HK" || region.String() == "MO" {
			return Traditional
		}
		return Simplified
	}
	return base.String()
}

// Equal reports whether two codes name the same language after
// normalization.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// SameBase reports whether two codes share a base language, so zh-CN and
// zh-TW match each other.
func SameBase(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return baseOf(na) == baseOf(nb)
}

func baseOf(code string) string {
	base, _, _ := strings.Cut(code, "-")
	return base
}

// IsCJK reports whether code names Chinese, Japanese or Korean.
func IsCJK(code string) bool {
	switch baseOf(Normalize(code)) {
	case "zh", "ja", "ko":
		return true
	}
	return false
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input.
// If the input is already a 2-letter code (even if unknown), it passes through.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	switch Normalize(code) {
	case "":
		return "Unknown"
	case Simplified:
		return "Chinese (Simplified)"
	case Traditional:
		return "Chinese (Traditional)"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// ExtractFromTags extracts and normalizes the language from stream metadata tags.
// Checks common tag keys: language, LANGUAGE, Language, language_ietf, lang, LANG.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := []string{"language_ietf", "language", "LANGUAGE", "Language", "lang", "LANG"}
	for _, key := range keys {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if value != "" && !strings.EqualFold(value, "und") {
				return Normalize(value)
			}
		}
	}
	return ""
}

// NormalizeList deduplicates and normalizes a list of language codes.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		n := Normalize(code)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	return normalized
}
