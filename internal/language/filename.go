package language

import (
	"path/filepath"
	"strings"
)

// subtitleFlags are filename parts that describe a variant, not a language.
var subtitleFlags = map[string]struct{}{
	"hi": {}, "cc": {}, "sdh": {}, "forced": {}, "commentary": {}, "default": {}, "full": {},
}

// FilenameTag describes the language and flags encoded in a subtitle
// filename such as "Show.S01E02.zh-TW.forced.srt".
type FilenameTag struct {
	Language string
	Forced   bool
	SDH      bool
}

// FromFilename reads the language tag from the dot-separated parts that
// follow the video base name. base may be empty when unknown.
func FromFilename(name, base string) FilenameTag {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base != "" && strings.HasPrefix(stem, base) {
		stem = strings.TrimPrefix(stem[len(base):], ".")
	} else if i := strings.Index(stem, "."); i >= 0 {
		stem = stem[i+1:]
	} else {
		return FilenameTag{}
	}

	parts := strings.Split(stem, ".")
	var tag FilenameTag
	for _, part := range parts {
		switch strings.ToLower(part) {
		case "forced":
			tag.Forced = true
		case "sdh", "cc", "hi":
			tag.SDH = true
		}
	}

	for i, part := range parts {
		lower := strings.ToLower(part)
		if v, ok := chineseVariants[lower]; ok && lower != "chinese" && strings.Contains(lower, "-") {
			tag.Language = v
			return tag
		}
		if lower == "zh" && i+1 < len(parts) {
			if v, ok := chineseVariants["zh-"+strings.ToLower(parts[i+1])]; ok {
				tag.Language = v
				return tag
			}
		}
		if lower == "zht" || lower == "cht" || lower == "zhs" || lower == "chs" {
			tag.Language = chineseVariants[lower]
			return tag
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		lower := strings.ToLower(parts[i])
		if _, flag := subtitleFlags[lower]; flag {
			continue
		}
		if lookup(lower) != nil {
			tag.Language = Normalize(lower)
			return tag
		}
	}
	return tag
}
