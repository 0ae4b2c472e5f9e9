package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/cverr"
)

// fixedRandSource always hands back the same byte for every read,
// forcing every (salt, iv) pair encryptBlob generates to collide.
type fixedRandSource struct{ b byte }

func (f fixedRandSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = f.b
	}
	return len(p), nil
}

func mustKey(b byte) []byte {
	k := make([]byte, derivedKeySize)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestPlaintextRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	code := []byte("package main\nfunc main() {}\n")
	require.NoError(t, s.Write("deadbeef", code, false))

	got, err := s.Read("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, code, got)
}

func TestEncryptedRoundTrip(t *testing.T) {
	keys := &KeySet{Primary: mustKey(0x01)}
	s, err := New(t.TempDir(), keys)
	require.NoError(t, err)

	code := []byte("secret source code")
	require.NoError(t, s.Write("cafebabe", code, true))

	got, err := s.Read("cafebabe")
	require.NoError(t, err)
	assert.Equal(t, code, got)
}

func TestEncryptionKeyRequiredOnRead(t *testing.T) {
	keys := &KeySet{Primary: mustKey(0x02)}
	s, err := New(t.TempDir(), keys)
	require.NoError(t, err)
	require.NoError(t, s.Write("abc123", []byte("data"), true))

	s.SetKeys(nil)
	_, err = s.Read("abc123")
	require.Error(t, err)
	kind, ok := cverr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cverr.KindEncryptionKeyRequired, kind)
}

func TestEncryptionAuthFailedOnWrongKey(t *testing.T) {
	s, err := New(t.TempDir(), &KeySet{Primary: mustKey(0x03)})
	require.NoError(t, err)
	require.NoError(t, s.Write("shashasha", []byte("data"), true))

	s.SetKeys(&KeySet{Primary: mustKey(0x09)})
	_, err = s.Read("shashasha")
	require.Error(t, err)
	kind, ok := cverr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cverr.KindEncryptionAuthFailed, kind)
}

func TestDeprecatedKeyStillDecrypts(t *testing.T) {
	oldKey := mustKey(0x04)
	s, err := New(t.TempDir(), &KeySet{Primary: oldKey})
	require.NoError(t, err)
	require.NoError(t, s.Write("rotateme", []byte("data"), true))

	newKey := mustKey(0x05)
	s.SetKeys(&KeySet{Primary: newKey, Deprecated: [][]byte{oldKey}})

	got, err := s.Read("rotateme")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestIVReuseGuard(t *testing.T) {
	s, err := New(t.TempDir(), &KeySet{Primary: mustKey(0x06)})
	require.NoError(t, err)
	s.setRandSource(fixedRandSource{b: 0x42})

	require.NoError(t, s.Write("one", []byte("data-one"), true))

	err = s.Write("two", []byte("data-two"), true)
	require.Error(t, err)
	kind, ok := cverr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cverr.KindEncryptionIVReuse, kind)
}

func TestDeleteRemovesBothForms(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Write("gone", []byte("data"), false))
	require.NoError(t, s.Delete("gone"))

	_, err = s.Read("gone")
	require.Error(t, err)
}
