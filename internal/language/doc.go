// Package language normalizes language codes and detects the language of
// subtitle text.
//
// Normalize folds ISO 639-1, ISO 639-2, English names and BCP 47 tags into
// the short codes used throughout the pipeline (en, ja, zh-CN, zh-TW, ...).
// Detector inspects cue text: script ranges decide CJK, Korean and Cyrillic
// text outright; everything else goes through statistical detection.
package language
