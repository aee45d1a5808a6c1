package speech

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVTT(t *testing.T) {
	vtt := `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:04.500
Photosynthesis converts <c>light</c> into chemical energy.

2
00:00:04.500 --> 00:00:08.000
It happens inside the chloroplast.

NOTE internal marker

01:02:03.000 --> 01:02:05.000
An hour in.
`
	segments, err := ParseVTT(strings.NewReader(vtt))
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, 1.0, segments[0].Start)
	assert.Equal(t, 4.5, segments[0].End)
	assert.Equal(t, "Photosynthesis converts light into chemical energy.", segments[0].Text)
	assert.Equal(t, "It happens inside the chloroplast.", segments[1].Text)
	assert.Equal(t, float64(1*3600+2*60+3), segments[2].Start)
}

func TestParseVTTDropsRollingDuplicates(t *testing.T) {
	// Auto-generated captions repeat the previous line in each cue.
	vtt := `WEBVTT

00:00:00.000 --> 00:00:02.000
the krebs cycle begins

00:00:02.000 --> 00:00:04.000
the krebs cycle begins
with citrate formation
`
	segments, err := ParseVTT(strings.NewReader(vtt))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "the krebs cycle begins", segments[0].Text)
	assert.Equal(t, "with citrate formation", segments[1].Text)
}

func TestParseVTTEmpty(t *testing.T) {
	_, err := ParseVTT(strings.NewReader("WEBVTT\n"))
	assert.ErrorContains(t, err, "no caption cues")
}
