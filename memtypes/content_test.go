package memtypes

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_RoundTrip_Examples(t *testing.T) {
	cases := []Content{
		NewTextContent("hello world"),
		NewImageContent("https://example.com/a.png", "a caption"),
		NewAudioContent("https://example.com/a.mp3", "a transcript"),
		NewVideoContent("https://example.com/a.mp4", "a summary"),
		NewMixedContent(NewTextContent("a"), NewImageContent("u", "c")),
	}
	structured, err := NewStructuredContent(map[string]any{"k": "v", "n": 1.0})
	require.NoError(t, err)
	cases = append(cases, structured)

	for _, c := range cases {
		data, err := Encode(c)
		require.NoError(t, err)
		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, c.Equal(decoded), "round trip mismatch for %+v", c)
	}
}

// TestContent_RoundTrip_Property exercises property 9 (§8.1): for every
// Content variant, decode(encode(c)) == c.
func TestContent_RoundTrip_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	textGen := gen.AlphaString().Map(func(s string) Content { return NewTextContent(s) })
	imageGen := gen.AlphaString().Map(func(s string) Content { return NewImageContent("https://x/"+s, s) })

	properties.Property("text content round-trips", prop.ForAll(
		func(c Content) bool {
			data, err := Encode(c)
			if err != nil {
				return false
			}
			decoded, err := Decode(data)
			if err != nil {
				return false
			}
			return c.Equal(decoded)
		},
		textGen,
	))

	properties.Property("image content round-trips", prop.ForAll(
		func(c Content) bool {
			data, err := Encode(c)
			if err != nil {
				return false
			}
			decoded, err := Decode(data)
			if err != nil {
				return false
			}
			return c.Equal(decoded)
		},
		imageGen,
	))

	properties.TestingRun(t)
}
