package wkb

import (
	"encoding/binary"
	"math"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
)

// WKB type constants (ISO SQL/MM)
const (
	wkbPoint        = 1
	wkbPolygon      = 3
	wkbMultiPolygon = 6

	// EWKB flags (PostGIS extended WKB)
	wkbZFlag    = 0x80000000
	wkbSRIDFlag = 0x20000000
)

// Encoder encodes 3D geometries to EWKB.
// Uses little-endian byte order; the SRID is written only when non-zero.
type Encoder struct {
	buf  []byte
	srid uint32
}

// NewEncoder creates a new encoder without SRID
func NewEncoder(initialSize int) *Encoder {
	return &Encoder{buf: make([]byte, 0, initialSize)}
}

// NewEncoderWithSRID creates a new encoder with specified SRID
func NewEncoderWithSRID(initialSize int, srid int) *Encoder {
	return &Encoder{
		buf:  make([]byte, 0, initialSize),
		srid: uint32(srid),
	}
}

// SRID returns the encoder's SRID
func (e *Encoder) SRID() int {
	return int(e.srid)
}

// Reset clears the buffer for reuse
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. They are overwritten by the next Encode
// call; copy them to keep them.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// EncodePointZ encodes a 3D point
func (e *Encoder) EncodePointZ(p vec3.T) []byte {
	e.Reset()
	e.ensureCapacity(33)
	e.header(wkbPoint, true)
	e.appendPoint(p)
	return e.buf
}

// EncodeFace encodes a face as a PolygonZ. Rings are written closed.
func (e *Encoder) EncodeFace(f geometry.Face) []byte {
	e.Reset()
	rings := f.Rings()
	e.ensureCapacity(13 + ringsSize(rings))
	e.header(wkbPolygon, true)
	e.appendRings(rings)
	return e.buf
}

// EncodeMultiFace encodes several faces as one MultiPolygonZ
func (e *Encoder) EncodeMultiFace(faces []geometry.Face) []byte {
	e.Reset()
	if len(faces) == 0 {
		return nil
	}

	size := 13
	for _, f := range faces {
		size += 9 + ringsSize(f.Rings())
	}
	e.ensureCapacity(size)

	e.header(wkbMultiPolygon, true)
	e.appendUint32(uint32(len(faces)))
	for _, f := range faces {
		// Embedded polygons carry no SRID
		e.header(wkbPolygon, false)
		e.appendRings(f.Rings())
	}
	return e.buf
}

func ringsSize(rings [][]vec3.T) int {
	n := 4
	for _, r := range rings {
		n += 4 + (len(r)+1)*24
	}
	return n
}

func (e *Encoder) header(geomType uint32, top bool) {
	e.buf = append(e.buf, 0x01)
	t := geomType | wkbZFlag
	if top && e.srid != 0 {
		e.appendUint32(t | wkbSRIDFlag)
		e.appendUint32(e.srid)
		return
	}
	e.appendUint32(t)
}

func (e *Encoder) appendRings(rings [][]vec3.T) {
	e.appendUint32(uint32(len(rings)))
	for _, ring := range rings {
		closed := len(ring) > 0 && ring[0] != ring[len(ring)-1]
		n := len(ring)
		if closed {
			n++
		}
		e.appendUint32(uint32(n))
		for _, p := range ring {
			e.appendPoint(p)
		}
		if closed {
			e.appendPoint(ring[0])
		}
	}
}

func (e *Encoder) appendPoint(p vec3.T) {
	e.appendFloat64(p[0])
	e.appendFloat64(p[1])
	e.appendFloat64(p[2])
}

func (e *Encoder) ensureCapacity(n int) {
	if cap(e.buf) < n {
		e.buf = make([]byte, 0, n)
	}
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) appendFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}
