package zarrstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"sparseframe/internal/models"
)

// Metadata file names of the Zarr v2 directory layout
const (
	groupFile = ".zgroup"
	arrayFile = ".zarray"
	attrsFile = ".zattrs"

	zarrFormat = 2
)

type groupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

type compressorMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

type arrayMeta struct {
	ZarrFormat int             `json:"zarr_format"`
	Shape      []int           `json:"shape"`
	Chunks     []int           `json:"chunks"`
	DType      string          `json:"dtype"`
	Compressor *compressorMeta `json:"compressor"`
	FillValue  json.RawMessage `json:"fill_value"`
	Order      string          `json:"order"`
	Filters    json.RawMessage `json:"filters"`
}

// elementType is a parsed Zarr dtype string such as "<u2"
type elementType struct {
	dtype models.DType
	order binary.ByteOrder
	kind  byte
	size  int
}

func parseElementType(s string) (elementType, error) {
	if len(s) < 3 {
		return elementType{}, fmt.Errorf("malformed dtype %q", s)
	}
	et := elementType{kind: s[1]}
	switch s[0] {
	case '<', '|':
		et.order = binary.LittleEndian
	case '>':
		et.order = binary.BigEndian
	default:
		return elementType{}, fmt.Errorf("dtype %q: unknown byte order", s)
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return elementType{}, fmt.Errorf("dtype %q: %w", s, err)
	}
	et.size = size

	key := fmt.Sprintf("%c%d", et.kind, size)
	dtypes := map[string]models.DType{
		"u1": models.Uint8, "u2": models.Uint16, "u4": models.Uint32, "u8": models.Uint64,
		"i1": models.Int8, "i2": models.Int16, "i4": models.Int32, "i8": models.Int64,
		"f4": models.Float32, "f8": models.Float64,
	}
	dt, ok := dtypes[key]
	if !ok {
		return elementType{}, fmt.Errorf("unsupported dtype %q", s)
	}
	et.dtype = dt
	return et, nil
}

func formatElementType(d models.DType) (string, error) {
	names := map[models.DType]string{
		models.Uint8: "|u1", models.Uint16: "<u2", models.Uint32: "<u4", models.Uint64: "<u8",
		models.Int8: "|i1", models.Int16: "<i2", models.Int32: "<i4", models.Int64: "<i8",
		models.Float32: "<f4", models.Float64: "<f8",
	}
	s, ok := names[d]
	if !ok {
		return "", fmt.Errorf("dtype %v has no zarr encoding", d)
	}
	return s, nil
}

// fillValue decodes the fill_value member: a number, null or one of the
// strings "NaN", "Infinity" and "-Infinity"
func fillValue(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("unsupported fill_value %q", s)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("fill_value: %w", err)
	}
	return v, nil
}

// decodeFloat widens one stored element
func (et elementType) decodeFloat(b []byte) float64 {
	switch et.kind {
	case 'f':
		if et.size == 4 {
			return float64(math.Float32frombits(et.order.Uint32(b)))
		}
		return math.Float64frombits(et.order.Uint64(b))
	case 'u':
		return float64(et.decodeUint(b))
	}
	return float64(et.decodeInt(b))
}

func (et elementType) decodeUint(b []byte) uint64 {
	switch et.size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(et.order.Uint16(b))
	case 4:
		return uint64(et.order.Uint32(b))
	}
	return et.order.Uint64(b)
}

func (et elementType) decodeInt(b []byte) int64 {
	switch et.size {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(et.order.Uint16(b)))
	case 4:
		return int64(int32(et.order.Uint32(b)))
	}
	return int64(et.order.Uint64(b))
}

func (et elementType) encodeFloat(b []byte, v float64) {
	switch et.kind {
	case 'f':
		if et.size == 4 {
			et.order.PutUint32(b, math.Float32bits(float32(v)))
			return
		}
		et.order.PutUint64(b, math.Float64bits(v))
		return
	case 'u':
		et.encodeInt(b, int64(uint64(v)))
		return
	}
	et.encodeInt(b, int64(v))
}

func (et elementType) encodeInt(b []byte, v int64) {
	switch et.size {
	case 1:
		b[0] = byte(v)
	case 2:
		et.order.PutUint16(b, uint16(v))
	case 4:
		et.order.PutUint32(b, uint32(v))
	default:
		et.order.PutUint64(b, uint64(v))
	}
}
