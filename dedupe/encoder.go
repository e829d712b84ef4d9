package dedupe

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

const (
	// data bytes per chunk, one more byte holds the position
	ChunkSize = 127
	// positions are a single byte
	MaxChunks = 256
	// longest key the chunk encoding can represent
	MaxChunkedKeyLen = ChunkSize * MaxChunks

	DigestSize = 32

	EncodingDigest = "digest"
	EncodingChunk  = "chunk"
)

var ErrKeyTooLong = errors.New("key too long for chunk encoding")

// Chunk is a fixed size piece of a key: ChunkSize data bytes then the position byte.
type Chunk [ChunkSize + 1]byte

// EncodeChunks splits key into position tagged chunks. The last chunk is zero padded.
// An empty key is a single all zero chunk.
func EncodeChunks(key []byte) ([]Chunk, error) {
	if len(key) > MaxChunkedKeyLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrKeyTooLong, len(key), MaxChunkedKeyLen)
	}
	n := (len(key) + ChunkSize - 1) / ChunkSize
	if n == 0 {
		n = 1
	}
	chunks := make([]Chunk, n)
	for i := range chunks {
		end := min((i+1)*ChunkSize, len(key))
		copy(chunks[i][:ChunkSize], key[i*ChunkSize:end])
		chunks[i][ChunkSize] = byte(i)
	}
	return chunks, nil
}

// Position of this chunk within its key.
func (c Chunk) Position() uint8 {
	return c[ChunkSize]
}

// Decode returns the data bytes without the zero padding, and the position.
// Data that ends in zero bytes is indistinguishable from padding.
func (c Chunk) Decode() ([]byte, uint8) {
	end := ChunkSize
	for end > 0 && c[end-1] == 0 {
		end--
	}
	return append([]byte(nil), c[:end]...), c.Position()
}

// KeyEncoder turns keys of any length into fixed width keys for the disk table.
// A key is on disk when all of its encoded keys are.
type KeyEncoder interface {
	Name() string
	// Width is the length of every encoded key
	Width() int
	// MaxKeyLen is the longest key that can be encoded, 0 for no limit
	MaxKeyLen() int
	Encode(key []byte) ([][]byte, error)
}

type ChunkEncoder struct{}

func (ChunkEncoder) Name() string   { return EncodingChunk }
func (ChunkEncoder) Width() int     { return ChunkSize + 1 }
func (ChunkEncoder) MaxKeyLen() int { return MaxChunkedKeyLen }

func (ChunkEncoder) Encode(key []byte) ([][]byte, error) {
	chunks, err := EncodeChunks(key)
	if err != nil {
		return nil, err
	}
	encoded := make([][]byte, len(chunks))
	for i := range chunks {
		encoded[i] = chunks[i][:]
	}
	return encoded, nil
}

type DigestEncoder struct{}

func (DigestEncoder) Name() string   { return EncodingDigest }
func (DigestEncoder) Width() int     { return DigestSize }
func (DigestEncoder) MaxKeyLen() int { return 0 }

func (DigestEncoder) Encode(key []byte) ([][]byte, error) {
	sum := blake3.Sum256(key)
	return [][]byte{sum[:]}, nil
}

// EncoderByName returns the encoder for "digest" or "chunk".
func EncoderByName(name string) (KeyEncoder, error) {
	switch name {
	case EncodingDigest, "":
		return DigestEncoder{}, nil
	case EncodingChunk:
		return ChunkEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown key encoding '%s', expected '%s' or '%s'", name, EncodingDigest, EncodingChunk)
}
