package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeClip(t *testing.T, sampleRate, samples int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, samples*2, sampleRate, 1, 16))
	buf.Write(make([]byte, samples*2))
	return buf.Bytes()
}

func TestWriteHeaderAndParse(t *testing.T) {
	clip := makeClip(t, 22050, 22050)
	require.Len(t, clip, HeaderSize+22050*2)

	info, err := Parse(clip)
	require.NoError(t, err)
	assert.Equal(t, 22050, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 16, info.BitsPerSample)
	assert.Equal(t, 22050*2, info.DataSize)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not audio"))
	require.Error(t, err)

	junk := make([]byte, HeaderSize)
	copy(junk, "JUNKxxxxJUNK")
	_, err = Parse(junk)
	require.Error(t, err)
}

func TestConcatPatchesSizes(t *testing.T) {
	a := makeClip(t, 22050, 1000)
	b := makeClip(t, 22050, 500)
	c := makeClip(t, 22050, 250)

	out := Concat([][]byte{a, b, c})
	require.Len(t, out, HeaderSize+(1000+500+250)*2)

	info, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, (1000+500+250)*2, info.DataSize)
	assert.Equal(t, 22050, info.SampleRate)
}

func TestConcatSingleClip(t *testing.T) {
	a := makeClip(t, 16000, 800)
	out := Concat([][]byte{a})
	assert.Equal(t, a, out)
}

func TestDuration(t *testing.T) {
	// One second of 16-bit mono at 22050 Hz.
	clip := makeClip(t, 22050, 22050)
	d := Duration(clip)
	assert.InDelta(t, float64(time.Second), float64(d), float64(time.Millisecond))

	assert.Equal(t, time.Duration(0), Duration([]byte("short")))
}
