package ports

// FrameSink receives completed frames for persistence.
type FrameSink interface {
	// Enabled returns true if frames should be delivered at all.
	Enabled() bool

	// SaveFrame stores one encoded frame. seq is the frame's production
	// sequence number and is used to name the output.
	SaveFrame(seq uint64, data []byte) error
}
