package mqtt311

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:  "empty string",
			input: "",
		},
		{
			name:  "simple ASCII",
			input: "hello",
		},
		{
			name:  "UTF-8 characters",
			input: "hello 世界 🌍",
		},
		{
			name:  "max length string",
			input: strings.Repeat("a", 65535),
		},
		{
			name:    "string too long",
			input:   strings.Repeat("a", 65536),
			wantErr: ErrStringTooLong,
		},
		{
			name:    "string with null",
			input:   "hello\x00world",
			wantErr: ErrStringContainsNull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			n, err := encodeString(&buf, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 2+len(tt.input), n)
			assert.Equal(t, 2+len(tt.input), buf.Len())

			decoded, n2, err := decodeString(&buf)
			require.NoError(t, err)
			assert.Equal(t, 2+len(tt.input), n2)
			assert.Equal(t, tt.input, decoded)
		})
	}
}

func TestDecodeStringInvalidUTF8(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x03, 0xFF, 0xFE, 0xFD})

	_, _, err := decodeString(buf)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestEncodeStringInvalidUTF8(t *testing.T) {
	invalidUTF8 := string([]byte{0xFF, 0xFE, 0xFD})
	var buf bytes.Buffer

	_, err := encodeString(&buf, invalidUTF8)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestDecodeStringWithNull(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x05, 'h', 'e', 0x00, 'l', 'o'})

	_, _, err := decodeString(buf)
	assert.ErrorIs(t, err, ErrStringContainsNull)
}

func TestDecodeStringTruncated(t *testing.T) {
	// Declared length 5 but only 2 bytes follow
	buf := bytes.NewBuffer([]byte{0x00, 0x05, 'h', 'i'})

	_, _, err := decodeString(buf)
	assert.Error(t, err)
}

func TestEncodeDecodeBinary(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{
			name:  "nil data",
			input: nil,
		},
		{
			name:  "simple data",
			input: []byte{0x01, 0x02, 0x03},
		},
		{
			name:  "binary with null",
			input: []byte{0x00, 0x01, 0x00},
		},
		{
			name:  "max length data",
			input: bytes.Repeat([]byte{0xAB}, 65535),
		},
		{
			name:    "data too long",
			input:   bytes.Repeat([]byte{0xAB}, 65536),
			wantErr: ErrBinaryTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			n, err := encodeBinary(&buf, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 2+len(tt.input), n)

			decoded, n2, err := decodeBinary(&buf)
			require.NoError(t, err)
			assert.Equal(t, 2+len(tt.input), n2)
			assert.Equal(t, []byte(tt.input), append([]byte(nil), decoded...))
		})
	}
}

func TestEncodeDecodeVarint(t *testing.T) {
	tests := []struct {
		value    uint32
		wantSize int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{268435455, 4},
	}

	for _, tt := range tests {
		var buf bytes.Buffer

		n, err := encodeVarint(&buf, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.wantSize, n, "value %d", tt.value)
		assert.Equal(t, tt.wantSize, varintSize(tt.value), "value %d", tt.value)

		decoded, n2, err := decodeVarint(&buf)
		require.NoError(t, err)
		assert.Equal(t, tt.wantSize, n2, "value %d", tt.value)
		assert.Equal(t, tt.value, decoded, "value %d", tt.value)
	}
}

func TestEncodeVarintTooLarge(t *testing.T) {
	var buf bytes.Buffer

	_, err := encodeVarint(&buf, 268435456)
	assert.ErrorIs(t, err, ErrVarintTooLarge)
}

func TestDecodeVarintMalformed(t *testing.T) {
	// Five continuation bytes exceed the four byte maximum
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F})

	_, _, err := decodeVarint(buf)
	assert.Error(t, err)
}

func TestDecodeVarintTruncated(t *testing.T) {
	// Continuation bit set but stream ends
	buf := bytes.NewBuffer([]byte{0x80})

	_, _, err := decodeVarint(buf)
	assert.Error(t, err)
}

func TestDecodeVarintKnownEncodings(t *testing.T) {
	tests := []struct {
		input []byte
		want  uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7F}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xFF, 0x7F}, 16383},
		{[]byte{0xFF, 0xFF, 0xFF, 0x7F}, 268435455},
	}

	for _, tt := range tests {
		decoded, n, err := decodeVarint(bytes.NewBuffer(tt.input))
		require.NoError(t, err)
		assert.Equal(t, len(tt.input), n)
		assert.Equal(t, tt.want, decoded)
	}
}
