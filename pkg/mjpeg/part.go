// Package mjpeg implements the multipart/x-mixed-replace framing used to
// stream JPEG frames over HTTP, in both directions.
package mjpeg

import (
	"io"
	"strconv"

	"github.com/google/uuid"
)

// PartContentType is the content type of every part.
const PartContentType = "image/jpeg"

// boundaryPrefix keeps tokens recognisable in captures.
const boundaryPrefix = "frame-boundary-"

// NewBoundary returns a fresh random boundary token. Each response gets its
// own token so concurrent clients never share one.
func NewBoundary() string {
	return boundaryPrefix + uuid.NewString()
}

// ContentType returns the response Content-Type for a boundary token.
func ContentType(boundary string) string {
	return "multipart/x-mixed-replace; boundary=" + boundary
}

// AppendPart appends one self-delimiting part carrying frame to dst:
//
//	--<boundary>\r\n
//	Content-Type: image/jpeg\r\n
//	Content-Length: <len(frame)>\r\n
//	\r\n
//	<frame>\r\n
func AppendPart(dst []byte, boundary string, frame []byte) []byte {
	dst = append(dst, "--"...)
	dst = append(dst, boundary...)
	dst = append(dst, "\r\nContent-Type: "+PartContentType+"\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(frame)), 10)
	dst = append(dst, "\r\n\r\n"...)
	dst = append(dst, frame...)
	dst = append(dst, "\r\n"...)
	return dst
}

// PartSize returns the encoded size of a part for a frame of n bytes.
func PartSize(boundary string, n int) int {
	return len(AppendPart(nil, boundary, nil)) + len(strconv.Itoa(n)) - 1 + n
}

// WritePart writes one part to w in a single Write call.
func WritePart(w io.Writer, boundary string, frame []byte) (int, error) {
	buf := make([]byte, 0, PartSize(boundary, len(frame)))
	return w.Write(AppendPart(buf, boundary, frame))
}
