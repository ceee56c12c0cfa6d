package language

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"

	"dualsub/internal/cues"
	"dualsub/internal/logging"
)

const (
	// SampleCues bounds how many cues contribute to a detection sample.
	SampleCues = 50

	MethodPattern     = "pattern"
	MethodStatistical = "statistical"
	MethodEmpty       = "empty"
)

var (
	assOverride = regexp.MustCompile(`\{[^}]*\}`)
	htmlTag     = regexp.MustCompile(`<[^>]+>`)
)

// Characters whose simplified and traditional forms differ. Each set holds
// only one side of each pair.
const (
	traditionalIndicators = "這個們來時會說對國為還應與學發過麼後開關當經實問題點體電網絡際繁見讓從頭氣"
	simplifiedIndicators  = "这个们来时会说对国为还应与学发过么后开关当经实问题点体电网络际简见让从头气"
)

// Result describes one detection.
type Result struct {
	Detected   string         `json:"detected"`
	Confidence float64        `json:"confidence"`
	Method     string         `json:"method"`
	Declared   string         `json:"declared,omitempty"`
	Matches    bool           `json:"matches"`
	SampleSize int            `json:"sample_size"`
	Details    map[string]any `json:"details,omitempty"`
}

// Detector identifies the language of subtitle text.
type Detector struct {
	logger *slog.Logger
}

// NewDetector constructs a Detector.
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{logger: logging.NewComponentLogger(logger, "language")}
}

// DetectFile reads the subtitle at path and compares the detected language
// with declared. Read failures produce an "unknown" result with the error in
// Details; detection never blocks processing.
func (d *Detector) DetectFile(path, declared string) Result {
	list, err := cues.ReadFile(path)
	if err != nil && !errors.Is(err, cues.ErrEmpty) {
		d.logger.Debug("language detection skipped", logging.String("path", path), logging.Error(err))
		return Result{
			Detected: Unknown,
			Method:   MethodEmpty,
			Declared: Normalize(declared),
			Details:  map[string]any{"error": err.Error()},
		}
	}
	result := d.DetectText(Sample(list))
	result.Declared = Normalize(declared)
	result.Matches = result.Declared != "" && result.Detected != Unknown && SameBase(result.Declared, result.Detected)
	if result.Declared != "" && result.Detected != Unknown && !result.Matches {
		logging.WarnWithContext(d.logger, "declared subtitle language differs from content", "language_mismatch",
			logging.String("path", path),
			logging.String("declared", result.Declared),
			logging.String("detected", result.Detected),
			logging.Float64("confidence", result.Confidence),
			logging.String(logging.FieldImpact, "dual subtitle may pair the wrong languages"),
			logging.String(logging.FieldErrorHint, "check the subtitle file's language tag"),
		)
	}
	return result
}

// Sample joins the text of up to SampleCues cues with formatting removed.
func Sample(list cues.List) string {
	texts := list.Texts(SampleCues)
	for i, text := range texts {
		texts[i] = Clean(text)
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

// Clean strips ASS override blocks, HTML tags and line breaks from cue text.
func Clean(text string) string {
	text = assOverride.ReplaceAllString(text, "")
	text = htmlTag.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, cues.LineBreak, " ")
	text = strings.ReplaceAll(text, `\n`, " ")
	return strings.Join(strings.Fields(text), " ")
}

// DetectText detects the language of sample.
func (d *Detector) DetectText(sample string) Result {
	sample = strings.TrimSpace(sample)
	if sample == "" {
		return Result{Detected: Unknown, Method: MethodEmpty}
	}
	if r, ok := detectByScript(sample); ok {
		return r
	}
	return detectStatistical(sample)
}

type scriptCounts struct {
	letters, hangul, kana, han, cyrillic int
}

func countScripts(text string) scriptCounts {
	var c scriptCounts
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		c.letters++
		switch {
		case unicode.Is(unicode.Hangul, r):
			c.hangul++
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			c.kana++
		case unicode.Is(unicode.Han, r):
			c.han++
		case unicode.Is(unicode.Cyrillic, r):
			c.cyrillic++
		}
	}
	return c
}

func scriptConfidence(ratio float64) float64 {
	return min(0.99, 0.6+0.4*ratio)
}

func detectByScript(sample string) (Result, bool) {
	c := countScripts(sample)
	if c.letters == 0 {
		return Result{}, false
	}
	total := float64(c.letters)
	size := len([]rune(sample))
	details := map[string]any{
		"letters":  c.letters,
		"hangul":   c.hangul,
		"kana":     c.kana,
		"han":      c.han,
		"cyrillic": c.cyrillic,
	}
	result := func(code string, ratio float64) (Result, bool) {
		return Result{Detected: code, Confidence: scriptConfidence(ratio), Method: MethodPattern, SampleSize: size, Details: details}, true
	}

	switch {
	case float64(c.kana)/total > 0.05:
		return result("ja", float64(c.kana+c.han)/total)
	case float64(c.hangul)/total > 0.1:
		return result("ko", float64(c.hangul)/total)
	case float64(c.han)/total > 0.1:
		variant, trad, simp := chineseVariant(sample)
		details["traditional_indicators"] = trad
		details["simplified_indicators"] = simp
		return result(variant, float64(c.han)/total)
	case float64(c.cyrillic)/total > 0.3:
		return result("ru", float64(c.cyrillic)/total)
	}
	return Result{}, false
}

// chineseVariant counts variant indicator characters. Ties resolve to
// simplified.
func chineseVariant(text string) (string, int, int) {
	var trad, simp int
	for _, r := range text {
		if strings.ContainsRune(traditionalIndicators, r) {
			trad++
		}
		if strings.ContainsRune(simplifiedIndicators, r) {
			simp++
		}
	}
	if trad > simp {
		return Traditional, trad, simp
	}
	return Simplified, trad, simp
}

func detectStatistical(sample string) Result {
	info := whatlanggo.Detect(sample)
	size := len([]rune(sample))
	code := Normalize(info.Lang.Iso6391())
	details := map[string]any{
		"statistical_language": info.Lang.String(),
		"reliable":             info.IsReliable(),
	}
	if code == "" || !info.IsReliable() {
		return Result{Detected: Unknown, Confidence: info.Confidence * 0.5, Method: MethodStatistical, SampleSize: size, Details: details}
	}
	return Result{
		Detected:   code,
		Confidence: info.Confidence * 0.9,
		Method:     MethodStatistical,
		SampleSize: size,
		Details:    details,
	}
}

// Describe renders a result for logs and item detail summaries.
func (r Result) Describe() string {
	if r.Declared == "" {
		return fmt.Sprintf("%s (%.0f%%, %s)", r.Detected, r.Confidence*100, r.Method)
	}
	return fmt.Sprintf("declared %s, detected %s (%.0f%%, %s)", r.Declared, r.Detected, r.Confidence*100, r.Method)
}
