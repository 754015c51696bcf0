package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

const (
	SampleRate    = 44100 // capture and synthesis rate, mono
	Channels      = 1
	BitsPerSample = 16 // int16 samples
)

type WavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// HeaderSize is the byte length of the canonical 44-byte RIFF header.
const HeaderSize = 44

func WriteWavHeader(w io.Writer, dataSize uint32) error {
	header := WavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * uint32(Channels) * uint32(BitsPerSample) / 8,
		BlockAlign:    Channels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	return binary.Write(w, binary.LittleEndian, header)
}

func UpdateWavHeader(file *os.File, dataSize uint32) error {
	// Update ChunkSize (file size - 8)
	if _, err := file.Seek(4, 0); err != nil {
		return fmt.Errorf("failed to seek to ChunkSize: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(dataSize+36)); err != nil {
		return fmt.Errorf("failed to write ChunkSize: %w", err)
	}

	// Update Subchunk2Size (data size)
	if _, err := file.Seek(40, 0); err != nil {
		return fmt.Errorf("failed to seek to Subchunk2Size: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, dataSize); err != nil {
		return fmt.Errorf("failed to write Subchunk2Size: %w", err)
	}

	return nil
}

// SegmentBytes returns the PCM byte count covering d at the capture format.
func SegmentBytes(d time.Duration) int {
	samples := int(float64(SampleRate) * d.Seconds())
	return samples * Channels * BitsPerSample / 8
}

// EncodeSegment wraps raw PCM in a standalone WAV container so a segment can
// be decoded in isolation by any WAV reader.
func EncodeSegment(pcm []byte) ([]byte, error) {
	buf := make([]byte, 0, HeaderSize+len(pcm))
	w := &sliceWriter{buf: buf}
	if err := WriteWavHeader(w, uint32(len(pcm))); err != nil {
		return nil, fmt.Errorf("failed to encode segment header: %w", err)
	}
	w.buf = append(w.buf, pcm...)
	return w.buf, nil
}

type sliceWriter struct {
	buf []byte
}

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Tone generates d of int16 PCM sine at freq Hz, used by the stub synthesizer.
func Tone(freq float64, d time.Duration) []byte {
	samples := int(float64(SampleRate) * d.Seconds())
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}
