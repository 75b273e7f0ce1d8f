package reference

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The embedding matrix artifact is a flat little-endian float32 dump with a small
// header: 4-byte magic, uint32 row count, uint32 dimension. It is always written and
// loaded together with the metadata JSON; the row count must match the metadata
// record count exactly.
var matrixMagic = [4]byte{'N', 'M', 'X', '1'}

// EncodeMatrix writes n vectors of equal length as one artifact.
func EncodeMatrix(w io.Writer, vectors [][]float32) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	if _, err := w.Write(matrixMagic[:]); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(dim))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}

	buf := make([]byte, 4)
	bw := bytes.Buffer{}
	for _, v := range vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
			bw.Write(buf)
		}
	}
	if _, err := w.Write(bw.Bytes()); err != nil {
		return fmt.Errorf("write matrix rows: %w", err)
	}
	return nil
}

// DecodeMatrix reads an encoded matrix back as one flat row-major slice.
func DecodeMatrix(r io.Reader) (data []float32, rows, dim int, err error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("read matrix header: %w", err)
	}
	if magic != matrixMagic {
		return nil, 0, 0, fmt.Errorf("bad matrix magic %q", magic)
	}

	hdr := make([]byte, 8)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, 0, 0, fmt.Errorf("read matrix header: %w", err)
	}
	rows = int(binary.LittleEndian.Uint32(hdr[0:4]))
	dim = int(binary.LittleEndian.Uint32(hdr[4:8]))

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read matrix rows: %w", err)
	}
	if len(raw) != rows*dim*4 {
		return nil, 0, 0, fmt.Errorf("matrix payload is %d bytes, want %d (%dx%d float32)", len(raw), rows*dim*4, rows, dim)
	}

	data = make([]float32, rows*dim)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return data, rows, dim, nil
}
