package dataconn

import (
	"compress/flate"
	"io"
)

// compressedConn wraps the raw stream with symmetric DEFLATE at a fixed
// level, the way MODE Z (spec.md §2's "optional on-the-fly decompression/
// compression") trades CPU for bytes on a slow link. No pack example ships
// a usable plain-DEFLATE framing dependency (see SPEC_FULL.md §2), so this
// one piece is built on the standard library's compress/flate.
type compressedConn struct {
	io.ReadWriteCloser
	reader io.ReadCloser
	writer *flate.Writer
}

// flateLevel is fixed per spec.md §4.2 ("symmetric DEFLATE with a fixed
// level"): best-speed, since the data connection already measures and
// adapts to throughput, and a higher level would spend CPU fighting the
// packet-size adaptation below it.
const flateLevel = flate.BestSpeed

func newCompressedConn(rw io.ReadWriteCloser) (*compressedConn, error) {
	w, err := flate.NewWriter(rw, flateLevel)
	if err != nil {
		return nil, err
	}

	return &compressedConn{
		ReadWriteCloser: rw,
		reader:          flate.NewReader(rw),
		writer:          w,
	}, nil
}

func (c *compressedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *compressedConn) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	if err != nil {
		return n, err
	}

	return n, c.writer.Flush()
}

func (c *compressedConn) Close() error {
	_ = c.writer.Close()
	_ = c.reader.Close()

	return c.ReadWriteCloser.Close()
}
