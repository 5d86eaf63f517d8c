package librarian

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/common"
)

func TestHashKnownDigests(t *testing.T) {
	cases := map[string]string{
		"md4":       "a448017aaf21d8525fc10ae87aa6729d",
		"md5":       "900150983cd24fb0d6963f7d28e17f72",
		"sha1":      "a9993e364706816aba3e25717850c26c9cd0d89d",
		"sha256":    "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"SHA3_256":  "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
		"ripemd160": "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc",
	}
	for fn, want := range cases {
		got, err := Hash(fn, "abc")
		require.NoError(t, err, fn)
		assert.Equal(t, want, got, fn)
	}
}

func TestHashDigestLengths(t *testing.T) {
	got, err := Hash("blake2b", "abc")
	require.NoError(t, err)
	assert.Len(t, got, 128)

	got, err = Hash("blake2s", "abc")
	require.NoError(t, err)
	assert.Len(t, got, 64)
}

func TestHashUnknownFunction(t *testing.T) {
	_, err := Hash("crc32", "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestHashListIsSortedAndComplete(t *testing.T) {
	names := HashList()
	assert.Len(t, names, len(hashes))
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	assert.Contains(t, names, "sha3_512")
}

func TestBase64(t *testing.T) {
	out, err := Base64(Encode, "Příliš žluťoučký kůň")
	require.NoError(t, err)
	back, err := Base64(Decode, out)
	require.NoError(t, err)
	assert.Equal(t, "Příliš žluťoučký kůň", back)

	out, err = Base64(Encode, "hello")
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", out)

	_, err = Base64(Decode, "not base64!")
	assert.Error(t, err)

	_, err = Base64(Decode, "//79")
	assert.Error(t, err, "invalid UTF-8 is rejected")
}

func TestBase64EncodeCutsLongInput(t *testing.T) {
	out, err := Base64(Encode, strings.Repeat("a", 1500))
	require.NoError(t, err)

	want, err := Base64(Encode, strings.Repeat("a", 1000))
	require.NoError(t, err)
	assert.Equal(t, want, out)
	assert.Len(t, out, 1336)
}

func TestBase64DecodeCutsLongInput(t *testing.T) {
	// 1500 bytes encode to 2000 characters, of which 1000 are decoded.
	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 1500)))
	require.Len(t, encoded, 2000)

	back, err := Base64(Decode, encoded)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 750), back)
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"encode", "e", "-e", "ENCODE"} {
		dir, ok := ParseDirection(s)
		assert.True(t, ok, s)
		assert.Equal(t, Encode, dir)
	}
	for _, s := range []string{"decode", "d", "-d"} {
		dir, ok := ParseDirection(s)
		assert.True(t, ok, s)
		assert.Equal(t, Decode, dir)
	}
	_, ok := ParseDirection("x")
	assert.False(t, ok)
}
