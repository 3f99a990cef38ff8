// General-purpose compression layer, the tuning decision named by §9's
// open question on zstd/lz4 vs semantic compression. No zstd/lz4 package
// appears anywhere in the retrieval pack (see DESIGN.md), so the
// general-purpose stage uses the standard library's flate implementation
// as a codec over a table's binary encoding. Compress applies no size
// threshold of its own; the thresholds in Config gate only the passes
// run by Optimizer.Run.
package optimize

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

// CompressedTable holds a table encoded (via dispatchtable.Encode) and
// then deflated.
type CompressedTable struct {
	Data           []byte
	OriginalBytes  int
	CompressedBytes int
}

// Ratio returns CompressedBytes / OriginalBytes; typical values are
// 0.5-0.7 per §4.8.
func (c CompressedTable) Ratio() float64 {
	if c.OriginalBytes == 0 {
		return 1.0
	}
	return float64(c.CompressedBytes) / float64(c.OriginalBytes)
}

// Compress deflates the encoded form of t.
func Compress(t *dispatchtable.Table) (CompressedTable, error) {
	encoded := dispatchtable.Encode(t)

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return CompressedTable{}, fmt.Errorf("optimize: creating flate writer: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return CompressedTable{}, fmt.Errorf("optimize: compressing table: %w", err)
	}
	if err := w.Close(); err != nil {
		return CompressedTable{}, fmt.Errorf("optimize: closing flate writer: %w", err)
	}

	return CompressedTable{
		Data:            buf.Bytes(),
		OriginalBytes:   len(encoded),
		CompressedBytes: buf.Len(),
	}, nil
}

// Decompress inflates a CompressedTable back into its binary encoding;
// callers then pass the result to dispatchtable.Decode. Correctness is
// verified by round-tripping a sample of lookups after compression (see
// VerifySample), matching the round-trip law in §8.
func Decompress(c CompressedTable) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(c.Data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("optimize: decompressing table: %w", err)
	}
	return out, nil
}

// VerifySample decompresses c and checks that looking up each hash in
// sample against the decompressed table returns the same implementation
// as looking it up in the original table t, per the §8 round-trip law:
// "semantically equivalent lookup results on a covering sample".
func VerifySample(t *dispatchtable.Table, c CompressedTable, sample []uint64) error {
	raw, err := Decompress(c)
	if err != nil {
		return err
	}
	decoded, err := dispatchtable.Decode(raw)
	if err != nil {
		return fmt.Errorf("optimize: decoding decompressed table: %w", err)
	}

	for _, hash := range sample {
		want, wantOk := t.Lookup(hash)
		got, gotOk := decoded.Lookup(hash)
		if wantOk != gotOk || want != got {
			return fmt.Errorf("optimize: compression round-trip mismatch for hash %x: want (%v,%v) got (%v,%v)",
				hash, want, wantOk, got, gotOk)
		}
	}
	return nil
}
