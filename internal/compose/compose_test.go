package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsub/internal/cues"
)

func TestComposeMergesOverlappingCue(t *testing.T) {
	primary := cues.List{{Start: 1000, End: 3000, Text: "Hello"}}
	secondary := cues.List{{Start: 1200, End: 2800, Text: "Bonjour"}}
	pri, sec := Prefixes("en", "fr", true)

	out := Compose(primary, secondary, Options{PrimaryPrefix: pri, SecondaryPrefix: sec})

	require.Len(t, out, 1)
	assert.Equal(t, `[EN] Hello\N[FR] Bonjour`, out[0].Text)
	assert.Equal(t, int64(1000), out[0].Start)
	assert.Equal(t, int64(3000), out[0].End)
}

func TestComposeTouchingEndpointsOverlap(t *testing.T) {
	primary := cues.List{{Start: 0, End: 1000, Text: "a"}}
	secondary := cues.List{{Start: 1000, End: 2000, Text: "b"}}
	out := Compose(primary, secondary, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, `a\Nb`, out[0].Text)
}

func TestComposeUnmatchedSecondaryBecomesOwnCue(t *testing.T) {
	primary := cues.List{
		{Start: 0, End: 1000, Text: "one"},
		{Start: 5000, End: 6000, Text: "three"},
	}
	secondary := cues.List{{Start: 2000, End: 3000, Text: "two"}}
	out := Compose(primary, secondary, Options{PrimaryPrefix: "[JA] ", SecondaryPrefix: "[EN] "})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"[JA] one", "[EN] two", "[JA] three"}, out.Texts(0))
}

func TestComposeAttachesToFirstOverlap(t *testing.T) {
	primary := cues.List{
		{Start: 0, End: 2000, Text: "p1"},
		{Start: 1500, End: 3000, Text: "p2"},
	}
	secondary := cues.List{{Start: 1800, End: 2500, Text: "s"}}
	out := Compose(primary, secondary, Options{})
	assert.Equal(t, `p1\Ns`, out[0].Text)
	assert.Equal(t, "p2", out[1].Text)
}

func TestComposeEmptySecondaryIsIdentity(t *testing.T) {
	primary := cues.List{
		{Start: 0, End: 500, Text: "a"},
		{Start: 700, End: 900, Text: "b"},
	}
	out := Compose(primary, nil, Options{})
	assert.Equal(t, primary, out)
}

func TestComposeDoesNotMutateInputs(t *testing.T) {
	primary := cues.List{{Start: 0, End: 1000, Text: "a"}}
	secondary := cues.List{{Start: 0, End: 1000, Text: "b"}}
	Compose(primary, secondary, Options{PrimaryPrefix: "[X] "})
	assert.Equal(t, "a", primary[0].Text)
	assert.Equal(t, "b", secondary[0].Text)
}

func TestComposeCustomLineBreak(t *testing.T) {
	out := Compose(cues.List{{Start: 0, End: 10, Text: "a"}}, cues.List{{Start: 5, End: 8, Text: "b"}}, Options{LineBreak: "\n"})
	assert.Equal(t, "a\nb", out[0].Text)
}

func TestPrefixes(t *testing.T) {
	pri, sec := Prefixes("ja", "zh-TW", true)
	assert.Equal(t, "[JA] ", pri)
	assert.Equal(t, "[ZH-TW] ", sec)

	pri, sec = Prefixes("", " ", true)
	assert.Equal(t, "[PRI] ", pri)
	assert.Equal(t, "[SEC] ", sec)

	pri, sec = Prefixes("ja", "en", false)
	assert.Empty(t, pri)
	assert.Empty(t, sec)
}

func TestWriteFileEndToEnd(t *testing.T) {
	pri, sec := Prefixes("en", "fr", true)
	out := Compose(
		cues.List{{Start: 1000, End: 3000, Text: "Hello"}},
		cues.List{{Start: 1000, End: 3000, Text: "Bonjour"}},
		Options{PrimaryPrefix: pri, SecondaryPrefix: sec},
	)
	path := filepath.Join(t.TempDir(), "show.dual.en-fr.srt")
	require.NoError(t, WriteFile(path, out))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:03,000\n[EN] Hello\n[FR] Bonjour\n\n", string(data))

	back, err := cues.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, back)
}

func TestPreview(t *testing.T) {
	list := cues.List{
		{Start: 0, End: 1000, Text: `a\Nb`},
		{Start: 2000, End: 3000, Text: "c"},
	}
	assert.Equal(t, []string{"00:00:00,000 --> 00:00:01,000 a / b"}, Preview(list, 1))
	assert.Len(t, Preview(list, 0), 2)
}
