// Package segment implements the on-disk segment: an immutable sorted
// key/value file holding one batch of indexed documents, and the codecs for
// the tagged keys and posting values stored in it.
package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// Key namespace tags. The first byte of every key selects its namespace.
const (
	TagSentence  byte = 0x00
	TagWord      byte = 0x10
	TagYomi      byte = 0x20
	TagMessageID byte = 0x80
	TagReference byte = 0x81
	TagDate      byte = 0xf0
	TagLabel     byte = 0xf1
	TagDoc       byte = 0xfd
	TagLocation  byte = 0xfe
	TagInfo      byte = 0xff
)

// CompressThreshold is the pair count from which posting payloads are
// zlib-compressed.
const CompressThreshold = 4

// FeatureKey prefixes payload with tag.
func FeatureKey(tag byte, payload []byte) string {
	b := make([]byte, 0, len(payload)+1)
	b = append(b, tag)
	b = append(b, payload...)
	return string(b)
}

// DecodeFeatureKey splits a key into its tag and payload.
func DecodeFeatureKey(key string) (byte, []byte, error) {
	if key == "" {
		return 0, nil, fmt.Errorf("decoding key: %w: empty key", apperrors.ErrSegmentCorrupted)
	}
	return key[0], []byte(key[1:]), nil
}

// WordKey encodes a bigram or Latin word term. The two low bits of the tag
// carry the term boundary.
func WordKey(boundary uint8, text string) string {
	return string([]byte{TagWord | (boundary & 3)}) + text
}

// IsWordKey reports whether key lives in the word namespace.
func IsWordKey(key string) bool {
	return key != "" && key[0]&0xfc == TagWord
}

// YomiKey encodes a phonetic bigram.
func YomiKey(pair []byte) string {
	return FeatureKey(TagYomi, pair)
}

func MessageIDKey(id string) string {
	return string([]byte{TagMessageID}) + id
}

func ReferenceKey(id string) string {
	return string([]byte{TagReference}) + id
}

func LabelKey(label string) string {
	return string([]byte{TagLabel}) + label
}

// DateKey encodes a date feature. Month and day are omitted when zero, so a
// year key, a year-month key and a full date key are all distinct.
func DateKey(year, month, day int) string {
	b := []byte{TagDate, 0, 0}
	binary.BigEndian.PutUint16(b[1:], uint16(year))
	if month > 0 {
		b = append(b, byte(month))
		if day > 0 {
			b = append(b, byte(day))
		}
	}
	return string(b)
}

// DecodeDateKey is the inverse of DateKey.
func DecodeDateKey(key string) (year, month, day int, err error) {
	if len(key) < 3 || len(key) > 5 || key[0] != TagDate {
		return 0, 0, 0, fmt.Errorf("decoding date key %q: %w", key, apperrors.ErrSegmentCorrupted)
	}
	year = int(binary.BigEndian.Uint16([]byte(key[1:3])))
	if len(key) > 3 {
		month = int(key[3])
	}
	if len(key) > 4 {
		day = int(key[4])
	}
	return year, month, day, nil
}

// SentenceKey addresses the stored text of one sentence.
func SentenceKey(docID, sentID int32) string {
	var b [9]byte
	b[0] = TagSentence
	binary.BigEndian.PutUint32(b[1:5], uint32(docID))
	binary.BigEndian.PutUint32(b[5:9], uint32(sentID))
	return string(b[:])
}

// DecodeSentenceKey is the inverse of SentenceKey.
func DecodeSentenceKey(key string) (docID, sentID int32, err error) {
	if len(key) != 9 || key[0] != TagSentence {
		return 0, 0, fmt.Errorf("decoding sentence key: %w", apperrors.ErrSegmentCorrupted)
	}
	b := []byte(key)
	return int32(binary.BigEndian.Uint32(b[1:5])), int32(binary.BigEndian.Uint32(b[5:9])), nil
}

// DocInfoKey addresses the document record of docID.
func DocInfoKey(docID int32) string {
	var b [5]byte
	b[0] = TagDoc
	binary.BigEndian.PutUint32(b[1:], uint32(docID))
	return string(b[:])
}

// DecodeDocInfoKey is the inverse of DocInfoKey.
func DecodeDocInfoKey(key string) (int32, error) {
	if len(key) != 5 || key[0] != TagDoc {
		return 0, fmt.Errorf("decoding doc key: %w", apperrors.ErrSegmentCorrupted)
	}
	return int32(binary.BigEndian.Uint32([]byte(key[1:]))), nil
}

// LocationKey addresses the DocID stored for a location.
func LocationKey(loc string) string {
	return string([]byte{TagLocation}) + loc
}

// InfoKey addresses the segment summary record.
func InfoKey() string {
	return string([]byte{TagInfo})
}

// EncodeDocValue packs a document's modification time and location.
func EncodeDocValue(modTime int64, loc string) []byte {
	b := make([]byte, 4, 4+len(loc))
	binary.BigEndian.PutUint32(b, uint32(int32(modTime)))
	return append(b, loc...)
}

// DecodeDocValue is the inverse of EncodeDocValue.
func DecodeDocValue(v []byte) (modTime int64, loc string, err error) {
	if len(v) < 4 {
		return 0, "", fmt.Errorf("decoding doc value: %w", apperrors.ErrSegmentCorrupted)
	}
	return int64(int32(binary.BigEndian.Uint32(v))), string(v[4:]), nil
}

func EncodeDocID(docID int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(docID))
	return b
}

func DecodeDocID(v []byte) (int32, error) {
	if len(v) != 4 {
		return 0, fmt.Errorf("decoding doc id: %w", apperrors.ErrSegmentCorrupted)
	}
	return int32(binary.BigEndian.Uint32(v)), nil
}

// Info summarises a segment.
type Info struct {
	Docs  int
	Terms int
}

func EncodeInfo(info Info) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], uint32(info.Docs))
	binary.BigEndian.PutUint32(b[4:8], uint32(info.Terms))
	return b
}

func DecodeInfo(v []byte) (Info, error) {
	if len(v) != 8 {
		return Info{}, fmt.Errorf("decoding info: %w", apperrors.ErrSegmentCorrupted)
	}
	return Info{
		Docs:  int(binary.BigEndian.Uint32(v[0:4])),
		Terms: int(binary.BigEndian.Uint32(v[4:8])),
	}, nil
}

// EncodePosting serialises a posting list in descending order. The pair
// array is compressed when it holds CompressThreshold pairs or more.
func EncodePosting(pairs index.List) ([]byte, error) {
	sorted := append(index.List(nil), pairs...)
	sorted.SortDesc()
	raw := make([]byte, 8*len(sorted))
	for i, p := range sorted {
		binary.BigEndian.PutUint32(raw[8*i:], uint32(p.DocID))
		binary.BigEndian.PutUint32(raw[8*i+4:], uint32(p.Pos))
	}
	var buf bytes.Buffer
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(sorted)))
	buf.Write(count[:])
	if len(sorted) < CompressThreshold {
		buf.Write(raw)
		return buf.Bytes(), nil
	}
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compressing posting: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing posting: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePosting is the inverse of EncodePosting.
func DecodePosting(v []byte) (index.List, error) {
	if len(v) < 4 {
		return nil, fmt.Errorf("decoding posting: %w: short value", apperrors.ErrSegmentCorrupted)
	}
	n := int(binary.BigEndian.Uint32(v[:4]))
	raw := v[4:]
	if n >= CompressThreshold {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding posting: %w: %v", apperrors.ErrSegmentCorrupted, err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding posting: %w: %v", apperrors.ErrSegmentCorrupted, err)
		}
	}
	if len(raw) != 8*n {
		return nil, fmt.Errorf("decoding posting: %w: %d bytes for %d pairs", apperrors.ErrSegmentCorrupted, len(raw), n)
	}
	pairs := make(index.List, n)
	for i := range pairs {
		pairs[i] = index.Pair{
			DocID: int32(binary.BigEndian.Uint32(raw[8*i:])),
			Pos:   int32(binary.BigEndian.Uint32(raw[8*i+4:])),
		}
	}
	return pairs, nil
}

// IsCompressed reports whether an encoded posting value carries a
// compressed pair array.
func IsCompressed(v []byte) bool {
	return len(v) >= 4 && binary.BigEndian.Uint32(v[:4]) >= CompressThreshold
}

// DecodeKey renders any key in a readable form, such as sent(3,0),
// term:|あい- or date:2024/05.
func DecodeKey(key string) (string, error) {
	tag, payload, err := DecodeFeatureKey(key)
	if err != nil {
		return "", err
	}
	switch {
	case tag == TagSentence:
		docID, sentID, err := DecodeSentenceKey(key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sent(%d,%d)", docID, sentID), nil
	case IsWordKey(key):
		b := tag & 3
		return "term:" + string("-|"[b>>1]) + string(payload) + string("-|"[b&1]), nil
	case tag == TagYomi:
		r := make([]rune, len(payload))
		for i, c := range payload {
			r[i] = 0x3000 + rune(c)
		}
		return "yomi:" + string(r), nil
	case tag == TagMessageID:
		return fmt.Sprintf("message-id:%q", payload), nil
	case tag == TagReference:
		return fmt.Sprintf("references:%q", payload), nil
	case tag == TagDate:
		y, m, d, err := DecodeDateKey(key)
		if err != nil {
			return "", err
		}
		switch {
		case m == 0:
			return fmt.Sprintf("date:%04d", y), nil
		case d == 0:
			return fmt.Sprintf("date:%04d/%02d", y, m), nil
		}
		return fmt.Sprintf("date:%04d/%02d/%02d", y, m, d), nil
	case tag == TagLabel:
		return fmt.Sprintf("label:%q", payload), nil
	case tag == TagDoc:
		docID, err := DecodeDocInfoKey(key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("docid:%d", docID), nil
	case tag == TagLocation:
		return fmt.Sprintf("loc:%q", payload), nil
	case tag == TagInfo && len(payload) == 0:
		return "info", nil
	}
	return fmt.Sprintf("key(0x%02x):%q", tag, payload), nil
}
