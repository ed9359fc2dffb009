package report

import (
	"bytes"

	"github.com/xhad/narrator/pkg/fileutil"
)

// ConcatAudio joins mp3 segments in order. MP3 frames are self-delimiting,
// so the byte concatenation plays back as one stream.
func ConcatAudio(segments [][]byte) []byte {
	return bytes.Join(segments, nil)
}

// WriteAudio writes the concatenated segments to path atomically.
func WriteAudio(path string, segments [][]byte) error {
	audio := ConcatAudio(segments)
	if len(audio) == 0 {
		return ErrNoSegments
	}
	return fileutil.WriteFileAtomic(path, audio, 0o644)
}
