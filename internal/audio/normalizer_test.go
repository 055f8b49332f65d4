package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// stereoWav builds a small two-channel PCM16 WAV clip in memory.
func stereoWav(samples int) []byte {
	const sampleRate = 8000
	dataLen := samples * 2 * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(2)) // stereo
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2*2))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	for i := 0; i < samples; i++ {
		s := int16(math.Sin(2*math.Pi*440*float64(i)/sampleRate) * 8000)
		binary.Write(&buf, binary.LittleEndian, s)
		binary.Write(&buf, binary.LittleEndian, -s)
	}
	return buf.Bytes()
}

func TestNormalizeDownmixesToMono(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	n := NewFFmpegNormalizer("ffmpeg", "64k")
	blob, err := n.Normalize(context.Background(), stereoWav(8000), ".wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(blob.Data) == 0 {
		t.Fatalf("expected encoded audio bytes")
	}
	if blob.Ext != NormalizedExt || blob.ContentType != NormalizedContentType {
		t.Fatalf("unexpected blob metadata: %+v", blob)
	}

	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed, cannot verify channel count")
	}
	tmp, err := os.CreateTemp("", "normalized-*.mp3")
	if err != nil {
		t.Fatalf("create temp: %v", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob.Data); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	tmp.Close()
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=channels",
		"-of", "csv=p=0",
		tmp.Name(),
	).Output()
	if err != nil {
		t.Fatalf("ffprobe: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "1" {
		t.Fatalf("expected 1 channel, got %s", got)
	}
}

func TestNormalizeMissingCodec(t *testing.T) {
	n := NewFFmpegNormalizer("ffmpeg-definitely-not-installed", "64k")
	_, err := n.Normalize(context.Background(), stereoWav(100), ".wav")
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizationError, got %v", err)
	}
}

func TestNormalizeUndecodableInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	n := NewFFmpegNormalizer("ffmpeg", "64k")
	_, err := n.Normalize(context.Background(), []byte("this is not audio"), ".wav")
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizationError, got %v", err)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := NewFFmpegNormalizer("", "")
	var nerr *NormalizationError
	if _, err := n.Normalize(context.Background(), nil, ".wav"); !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizationError for empty input, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("/tmp/in.wav", "/tmp/out.mp3", "64k")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-ac 1", "-b:a 64k", "-codec:a libmp3lame", "-f mp3"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q: %s", want, joined)
		}
	}
}

func TestRewriteExt(t *testing.T) {
	cases := []struct {
		filename, ext, want string
	}{
		{"visit.wav", ".mp3", "visit.mp3"},
		{"recorded-visit.m4a", NormalizedExt, "recorded-visit.mp3"},
		{"noext", ".mp3", "noext.mp3"},
		{"", ".mp3", "recording.mp3"},
	}
	for _, c := range cases {
		if got := RewriteExt(c.filename, c.ext); got != c.want {
			t.Errorf("RewriteExt(%q, %q) = %q, want %q", c.filename, c.ext, got, c.want)
		}
	}
}

func TestIsSupportedFormat(t *testing.T) {
	for _, name := range []string{"a.mp3", "b.WAV", "c.m4a"} {
		if !IsSupportedFormat(name) {
			t.Errorf("expected %s to be supported", name)
		}
	}
	for _, name := range []string{"a.pdf", "b.flac", "noext"} {
		if IsSupportedFormat(name) {
			t.Errorf("expected %s to be rejected", name)
		}
	}
}
