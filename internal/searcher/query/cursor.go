package query

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

const cursorSize = 14

// Cursor is a resume position: candidates of segment Segment with a DocID
// below Bound come next. Found counts the hits returned before it. Index
// fingerprints the segment list the position refers to.
type Cursor struct {
	Segment int
	Bound   int32
	Found   int
	Index   uint32
}

// startCursor is the position before the first candidate of the index.
var startCursor = Cursor{Segment: 0, Bound: math.MaxInt32}

// Encode returns the cursor as a URL-safe token.
func (c Cursor) Encode() string {
	var b [cursorSize]byte
	binary.BigEndian.PutUint16(b[0:2], uint16(c.Segment))
	binary.BigEndian.PutUint32(b[2:6], uint32(c.Bound))
	binary.BigEndian.PutUint32(b[6:10], uint32(c.Found))
	binary.BigEndian.PutUint32(b[10:14], c.Index)
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// DecodeCursor parses a token made by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(b) != cursorSize {
		return Cursor{}, apperrors.New(apperrors.ErrInvalidCursor, http.StatusBadRequest, "malformed cursor")
	}
	c := Cursor{
		Segment: int(binary.BigEndian.Uint16(b[0:2])),
		Bound:   int32(binary.BigEndian.Uint32(b[2:6])),
		Found:   int(binary.BigEndian.Uint32(b[6:10])),
		Index:   binary.BigEndian.Uint32(b[10:14]),
	}
	if c.Bound <= 0 || c.Found < 0 {
		return Cursor{}, apperrors.New(apperrors.ErrInvalidCursor, http.StatusBadRequest, "cursor out of range")
	}
	return c, nil
}
