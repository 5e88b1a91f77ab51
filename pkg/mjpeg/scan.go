package mjpeg

import "bytes"

var (
	soi = []byte{0xFF, 0xD8}
	// eoiSOI is the seam between two concatenated JPEG images. Splitting on
	// the seam rather than on any SOI keeps embedded EXIF thumbnails intact.
	eoiSOI = []byte{0xFF, 0xD9, 0xFF, 0xD8}
)

// ScanFrames is a bufio.SplitFunc that cuts a raw concatenated JPEG stream
// (as written by `libcamera-vid --codec mjpeg -o -` or
// `ffmpeg -f image2pipe`) into tokens that each begin at a frame's SOI
// marker. Bytes before the first SOI are returned as a token of their own.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if !bytes.HasPrefix(data, soi) {
		if i := bytes.Index(data, soi); i > 0 {
			return i, data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		if len(data) == 1 && data[0] == soi[0] {
			// could be the first half of a marker
			return 0, nil, nil
		}
		// Keep a trailing 0xFF: it may be the start of the next SOI.
		if n := len(data); data[n-1] == soi[0] {
			return n - 1, data[:n-1], nil
		}
		return len(data), data, nil
	}

	if i := bytes.Index(data[len(soi):], eoiSOI); i >= 0 {
		end := len(soi) + i + 2
		return end, data[:end], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
