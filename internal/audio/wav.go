// Package audio contains small helpers for the RIFF/WAV framing that
// piper and coqui produce. Synthesis itself happens in the engines.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// HeaderSize is the size of the canonical 16-bit PCM WAV header.
const HeaderSize = 44

// WriteHeader writes a standard PCM WAV header for dataSize bytes of audio.
func WriteHeader(w io.Writer, dataSize, sampleRate, channels, bitsPerSample int) error {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	chunkSize := 36 + dataSize

	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(chunkSize)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}

	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16), // PCM subchunk size
		uint16(1),  // PCM format
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitsPerSample),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(dataSize))
}

// Concat joins several complete WAV clips into one: the first clip keeps
// its header, the rest contribute raw sample data, and the RIFF/data sizes
// are patched afterwards. All clips must share the same format.
func Concat(clips [][]byte) []byte {
	var out []byte
	for i, clip := range clips {
		if i == 0 {
			out = append(out, clip...)
			continue
		}
		if len(clip) > HeaderSize {
			out = append(out, clip[HeaderSize:]...)
		}
	}
	PatchSizes(out)
	return out
}

// PatchSizes rewrites the RIFF chunk size and data subchunk size in place
// to match the actual buffer length.
func PatchSizes(wav []byte) {
	if len(wav) < HeaderSize {
		return
	}
	binary.LittleEndian.PutUint32(wav[4:8], uint32(len(wav)-8))
	binary.LittleEndian.PutUint32(wav[40:44], uint32(len(wav)-HeaderSize))
}

// Info describes the PCM format of a WAV clip.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

// Parse reads the canonical header of a WAV clip. It only understands the
// plain 44-byte PCM layout that piper emits.
func Parse(wav []byte) (Info, error) {
	if len(wav) < HeaderSize {
		return Info{}, fmt.Errorf("wav too short: %d bytes", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("not a RIFF/WAVE stream")
	}
	return Info{
		Channels:      int(binary.LittleEndian.Uint16(wav[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(wav[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(wav[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(wav[40:44])),
	}, nil
}

// Duration computes the playback length of a WAV clip from its header.
func Duration(wav []byte) time.Duration {
	info, err := Parse(wav)
	if err != nil || info.SampleRate == 0 || info.Channels == 0 || info.BitsPerSample == 0 {
		return 0
	}
	byteRate := info.SampleRate * info.Channels * info.BitsPerSample / 8
	if byteRate == 0 {
		return 0
	}
	dataLen := len(wav) - HeaderSize
	if info.DataSize > 0 && info.DataSize < dataLen {
		dataLen = info.DataSize
	}
	return time.Duration(float64(dataLen) / float64(byteRate) * float64(time.Second))
}
