// Package audio converts arbitrary visit recordings into the compressed
// mono form the transcription service expects.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Output format of normalization. The remote upload limit makes a reduced
// bitrate mono stream preferable to the raw recording.
const (
	NormalizedExt         = ".mp3"
	NormalizedContentType = "audio/mpeg"
)

// SupportedFormats lists the recording formats clinicians may upload.
var SupportedFormats = []string{".mp3", ".wav", ".m4a"}

// IsSupportedFormat checks if the file extension is an accepted format.
func IsSupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// Blob is an immutable audio payload ready for submission.
type Blob struct {
	Data        []byte
	ContentType string
	Ext         string
}

// NormalizationError reports that the recording could not be converted.
// Callers must not proceed to submission after one.
type NormalizationError struct {
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize audio: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize audio: %s", e.Reason)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// Normalizer converts raw recording bytes into a Blob.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, sourceExt string) (*Blob, error)
}

// FFmpegNormalizer shells out to ffmpeg for decode, downmix, and re-encode.
type FFmpegNormalizer struct {
	binary  string
	bitrate string
}

// NewFFmpegNormalizer creates a normalizer using the given ffmpeg binary and
// target bitrate. Empty arguments fall back to "ffmpeg" and "64k".
func NewFFmpegNormalizer(binary, bitrate string) *FFmpegNormalizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "64k"
	}
	return &FFmpegNormalizer{binary: binary, bitrate: bitrate}
}

// Normalize writes the recording to a scoped temp file, converts it to mono
// MP3 at the configured bitrate, and returns the encoded bytes. Both temp
// files are removed on every exit path.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, data []byte, sourceExt string) (*Blob, error) {
	if len(data) == 0 {
		return nil, &NormalizationError{Reason: "empty recording"}
	}
	if _, err := exec.LookPath(n.binary); err != nil {
		return nil, &NormalizationError{Reason: "codec tool unavailable", Err: err}
	}

	in, err := os.CreateTemp("", "visit-in-*"+cleanExt(sourceExt))
	if err != nil {
		return nil, &NormalizationError{Reason: "create temp file", Err: err}
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, &NormalizationError{Reason: "write temp file", Err: err}
	}
	if err := in.Close(); err != nil {
		return nil, &NormalizationError{Reason: "close temp file", Err: err}
	}

	out, err := os.CreateTemp("", "visit-out-*"+NormalizedExt)
	if err != nil {
		return nil, &NormalizationError{Reason: "create output file", Err: err}
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, n.binary, buildArgs(in.Name(), outPath, n.bitrate)...)
	combined, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &NormalizationError{
			Reason: fmt.Sprintf("conversion failed: %s", tail(combined)),
			Err:    err,
		}
	}
	encoded, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &NormalizationError{Reason: "read converted audio", Err: err}
	}
	if len(encoded) == 0 {
		return nil, &NormalizationError{Reason: "conversion produced no audio"}
	}
	return &Blob{Data: encoded, ContentType: NormalizedContentType, Ext: NormalizedExt}, nil
}

// buildArgs assembles the ffmpeg invocation: decode the input, downmix to a
// single channel, re-encode as MP3 at a fixed reduced bitrate.
func buildArgs(inPath, outPath, bitrate string) []string {
	return []string{
		"-i", inPath,
		"-ac", "1",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		"-y",
		outPath,
	}
}

// RewriteExt returns filename with its extension replaced by ext, so the
// submitted name matches the normalized payload.
func RewriteExt(filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" {
		base = "recording"
	}
	return base + cleanExt(ext)
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ".wav"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func tail(b []byte) string {
	const max = 400
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}
