package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of tile ids into base64(varint pairs).
// The pairs are (tile_id, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for _, r := range EncodeRuns(ids) {
		n := binary.PutUvarint(tmp[:], uint64(r.Value))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(r.Len))
		buf.Write(tmp[:n])
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var runs []Run[uint16]
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("tile id too large: %d", v)
		}
		if run == 0 || run > 1<<31 {
			return nil, fmt.Errorf("bad run length %d at %d", run, i)
		}
		runs = append(runs, Run[uint16]{Value: uint16(v), Len: int(run)})
	}
	return DecodeRuns(runs)
}
