package language

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsub/internal/cues"
)

func TestDetectTextScripts(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		name string
		text string
		want string
	}{
		{"japanese", "こんにちは世界。これはテストです。", "ja"},
		{"korean", "안녕하세요 세계. 이것은 테스트입니다.", "ko"},
		{"russian", "Привет мир. Это тест.", "ru"},
		{"simplified", "简体国际电脑网络简体国际电脑网络", "zh-CN"},
		{"traditional", "繁體國際電腦網絡繁體國際電腦網絡", "zh-TW"},
		{"chinese tie", "你好世界", "zh-CN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := d.DetectText(tt.text)
			assert.Equal(t, tt.want, r.Detected)
			assert.Equal(t, MethodPattern, r.Method)
			assert.Greater(t, r.Confidence, 0.5)
		})
	}
}

func TestDetectTextChineseIndicatorDetails(t *testing.T) {
	r := NewDetector(nil).DetectText("這是繁體中文測試")
	require.Equal(t, "zh-TW", r.Detected)
	assert.Contains(t, r.Details, "traditional_indicators")
	assert.Contains(t, r.Details, "simplified_indicators")
}

func TestDetectTextStatisticalEnglish(t *testing.T) {
	r := NewDetector(nil).DetectText("Where are you going tonight? I thought we were meeting at the station after work, but nobody told me the plan had changed.")
	assert.Equal(t, MethodStatistical, r.Method)
	assert.Equal(t, "en", r.Detected)
}

func TestDetectTextEmpty(t *testing.T) {
	r := NewDetector(nil).DetectText("   ")
	assert.Equal(t, Unknown, r.Detected)
	assert.Equal(t, MethodEmpty, r.Method)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Hello world", Clean(`{\i1}Hello{\i0} world`))
	assert.Equal(t, "Hello world", Clean("<i>Hello</i> <b>world</b>"))
	assert.Equal(t, "one two", Clean(`one\Ntwo`))
}

func TestSampleLimitsCues(t *testing.T) {
	list := make(cues.List, 0, 60)
	for i := 0; i < 60; i++ {
		list = append(list, cues.Cue{Start: int64(i), End: int64(i + 1), Text: "x"})
	}
	assert.Len(t, Sample(list), 2*SampleCues-1)
}

func TestDetectFileComparesDeclared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.ja.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:01,000 --> 00:00:02,000\nこんにちは、元気ですか。\n\n2\n00:00:03,000 --> 00:00:04,000\nはい、ありがとう。\n"), 0o644))
	d := NewDetector(nil)

	r := d.DetectFile(path, "jpn")
	assert.Equal(t, "ja", r.Detected)
	assert.Equal(t, "ja", r.Declared)
	assert.True(t, r.Matches)

	r = d.DetectFile(path, "en")
	assert.False(t, r.Matches)
}

func TestDetectFileMissing(t *testing.T) {
	r := NewDetector(nil).DetectFile(filepath.Join(t.TempDir(), "missing.srt"), "en")
	assert.Equal(t, Unknown, r.Detected)
	assert.False(t, r.Matches)
	assert.Contains(t, r.Details, "error")
}
