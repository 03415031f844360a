package dataencryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Version:    1,
		ProviderID: "aesgcm",
		Nonce:      []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, h))
	buf.WriteString("ciphertext-payload")

	require.True(t, HasMagic(buf.Bytes()))

	r := bytes.NewReader(buf.Bytes())
	decoded, present, err := ReadHeader(r)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, h.Version, decoded.Version)
	require.Equal(t, h.ProviderID, decoded.ProviderID)
	require.Equal(t, h.Nonce, decoded.Nonce)

	rest := make([]byte, r.Len())
	_, _ = r.Read(rest)
	require.Equal(t, "ciphertext-payload", string(rest))
}

func TestHasMagic(t *testing.T) {
	require.True(t, HasMagic([]byte("CSEH and more")))
	require.False(t, HasMagic([]byte("plain text")))
	require.False(t, HasMagic([]byte("CS")))
	require.False(t, HasMagic(nil))
}

func TestReadHeader_NoMagic(t *testing.T) {
	h, present, err := ReadHeader(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)
	require.False(t, present)
	require.Nil(t, h)
}

func TestReadHeader_TruncatedInput(t *testing.T) {
	h, present, err := ReadHeader(bytes.NewReader([]byte("CS")))
	require.NoError(t, err)
	require.False(t, present)
	require.Nil(t, h)
}

func TestReadHeader_MalformedAfterMagic(t *testing.T) {
	// Magic present but the advertised header length exceeds the payload.
	data := []byte{'C', 'S', 'E', 'H', 0x20, 0x01}
	h, present, err := ReadHeader(bytes.NewReader(data))
	require.Error(t, err)
	require.True(t, present)
	require.Nil(t, h)
}

func TestReadHeader_RejectsOversizedHeaderLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("CSEH")
	writeVarint32(&buf, 1<<20)
	_, present, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	require.True(t, present)
}

func TestVarint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0x7F, 0x80, 300, 1 << 14, 1 << 21, 1<<32 - 1} {
		var buf bytes.Buffer
		writeVarint32(&buf, v)
		got, err := readVarint32(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
