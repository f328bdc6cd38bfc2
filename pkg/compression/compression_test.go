package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = []byte(strings.Repeat("fn=(1) main\n10 100 20\n", 200))

func TestRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeNone, TypeGzip, TypeZstd} {
		t.Run(typ.String(), func(t *testing.T) {
			compressed, err := Compress(typ, payload)
			require.NoError(t, err)
			assert.Equal(t, typ, DetectType(compressed))
			if typ != TypeNone {
				assert.Less(t, len(compressed), len(payload))
			}

			out, err := Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestNewWriter_DoesNotCloseUnderlying(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(TypeZstd, &buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"", TypeNone},
		{"none", TypeNone},
		{"GZIP", TypeGzip},
		{"gz", TypeGzip},
		{"zstd", TypeZstd},
		{"zst", TypeZstd},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseType("lz4")
	assert.Error(t, err)
}

func TestTypeMetadata(t *testing.T) {
	assert.Equal(t, ".zst", TypeZstd.Extension())
	assert.Equal(t, ".gz", TypeGzip.Extension())
	assert.Empty(t, TypeNone.Extension())
	assert.Equal(t, "gzip", TypeGzip.ContentEncoding())
	assert.Empty(t, TypeNone.ContentEncoding())
}

func TestDetectType_ShortInput(t *testing.T) {
	assert.Equal(t, TypeNone, DetectType(nil))
	assert.Equal(t, TypeNone, DetectType([]byte{0x28}))
	assert.Equal(t, TypeGzip, DetectType([]byte{0x1f, 0x8b}))
}

func TestDecompress_Empty(t *testing.T) {
	out, err := Decompress(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewWriter_UnknownType(t *testing.T) {
	_, err := NewWriter(Type(42), io.Discard)
	assert.Error(t, err)
}

func BenchmarkZstdCompress(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Compress(TypeZstd, payload)
	}
}
