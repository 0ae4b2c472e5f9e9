// Package store implements the content-addressed, optionally encrypted
// chunk blob store.
//
// Writes use the same atomic write-to-temp-then-rename discipline as
// internal/manifest and internal/codemap, framing blobs as
// gzip+AES-256-GCM. Key derivation uses golang.org/x/crypto/hkdf.
package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/codevault/codevault/internal/cverr"
)

const (
	magic      = "CVAULTE1"
	versionV1  = 0x01
	versionV2  = 0x02
	hkdfInfo   = "codevault-chunk-v1"
	saltSize   = 16
	ivSize     = 12
	keyIDSize  = 4
	derivedKeySize = 32
)

// KeySet is the {primary, deprecated[]} key configuration.
// All writes use Primary; reads try Primary first, then Deprecated.
type KeySet struct {
	Primary    []byte
	Deprecated [][]byte
}

func (k *KeySet) all() [][]byte {
	if k == nil {
		return nil
	}
	out := make([][]byte, 0, 1+len(k.Deprecated))
	if len(k.Primary) > 0 {
		out = append(out, k.Primary)
	}
	out = append(out, k.Deprecated...)
	return out
}

// Store is the content-addressed blob store rooted at dir
// (".codevault/chunks" in the on-disk layout).
type Store struct {
	dir  string
	keys *KeySet
	rand io.Reader // source of salt/iv bytes; crypto/rand.Reader unless overridden for tests

	mu      sync.Mutex
	seenIVs map[[keyIDSize]byte]map[string]bool
}

// New creates a Store rooted at dir. keys may be nil to disable encryption
// on write (existing encrypted blobs can still be read if keys is later
// supplied via SetKeys).
func New(dir string, keys *KeySet) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk store dir: %w", err)
	}
	return &Store{dir: dir, keys: keys, rand: rand.Reader, seenIVs: make(map[[keyIDSize]byte]map[string]bool)}, nil
}

// setRandSource overrides the salt/iv source, for tests that need to
// force a specific or colliding sequence of bytes through encryptBlob.
func (s *Store) setRandSource(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

// SetKeys updates the active key set (e.g. after a key-rotation event).
func (s *Store) SetKeys(keys *KeySet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

func keyID(key []byte) [keyIDSize]byte {
	sum := sha256.Sum256(key)
	var id [keyIDSize]byte
	copy(id[:], sum[:keyIDSize])
	return id
}

func (s *Store) plainPath(sha string) string   { return filepath.Join(s.dir, sha+".gz") }
func (s *Store) cipherPath(sha string) string  { return filepath.Join(s.dir, sha+".gz.enc") }

// Write stores code (gzip-compressed, optionally AES-256-GCM-encrypted)
// under its content address. Writes are atomic (temp file + rename).
func (s *Store) Write(sha string, code []byte, encrypt bool) error {
	compressed, err := gzipBytes(code)
	if err != nil {
		return cverr.Wrap(cverr.KindChunkReadFailed, "compress chunk", err)
	}

	if !encrypt || s.keys == nil || len(s.keys.Primary) == 0 {
		return atomicWrite(s.plainPath(sha), compressed)
	}

	blob, err := s.encryptBlob(compressed)
	if err != nil {
		return err
	}
	return atomicWrite(s.cipherPath(sha), blob)
}

func (s *Store) encryptBlob(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	src := s.rand
	s.mu.Unlock()

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(src, salt); err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "generate salt", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(src, iv); err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "generate iv", err)
	}

	id := keyID(s.keys.Primary)
	if err := s.guardIVReuse(id, salt, iv); err != nil {
		return nil, err
	}

	derived, err := deriveKey(s.keys.Primary, salt)
	if err != nil {
		return nil, err
	}
	ct, err := aesGCMSeal(derived, iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+1+keyIDSize+saltSize+ivSize+len(ct))
	out = append(out, []byte(magic)...)
	out = append(out, versionV2)
	out = append(out, id[:]...)
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, ct...)
	return out, nil
}

// guardIVReuse tracks (salt, iv) pairs written per key_id in this process
// and rejects a repeat.
func (s *Store) guardIVReuse(id [keyIDSize]byte, salt, iv []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.seenIVs[id]
	if !ok {
		set = make(map[string]bool)
		s.seenIVs[id] = set
	}
	token := string(salt) + string(iv)
	if set[token] {
		return cverr.New(cverr.KindEncryptionIVReuse, "salt/iv pair reused for key_id "+fmt.Sprintf("%x", id))
	}
	set[token] = true
	return nil
}

// Read loads and decompresses a chunk by content address, accepting
// either the plaintext or encrypted form.
func (s *Store) Read(sha string) ([]byte, error) {
	if data, err := os.ReadFile(s.plainPath(sha)); err == nil {
		return gunzipBytes(data)
	}

	data, err := os.ReadFile(s.cipherPath(sha))
	if err != nil {
		return nil, cverr.Wrap(cverr.KindChunkReadFailed, "read chunk "+sha, err)
	}
	return s.decryptBlob(data)
}

func (s *Store) decryptBlob(data []byte) ([]byte, error) {
	if len(data) < len(magic)+1 || string(data[:len(magic)]) != magic {
		return nil, cverr.New(cverr.KindChunkDecompressFailed, "bad chunk magic")
	}
	pos := len(magic)
	version := data[pos]
	pos++

	s.mu.Lock()
	keys := s.keys
	s.mu.Unlock()

	switch version {
	case versionV1:
		if keys == nil {
			return nil, cverr.New(cverr.KindEncryptionKeyRequired, "encrypted chunk requires a key")
		}
		if len(data) < pos+saltSize+ivSize {
			return nil, cverr.New(cverr.KindChunkDecompressFailed, "truncated v1 blob")
		}
		salt := data[pos : pos+saltSize]
		pos += saltSize
		iv := data[pos : pos+ivSize]
		pos += ivSize
		ct := data[pos:]
		for _, key := range keys.all() {
			derived, err := deriveKey(key, salt)
			if err != nil {
				continue
			}
			if pt, err := aesGCMOpen(derived, iv, ct); err == nil {
				return gunzipBytes(pt)
			}
		}
		return nil, cverr.New(cverr.KindEncryptionAuthFailed, "no key decrypted v1 chunk")

	case versionV2:
		if keys == nil {
			return nil, cverr.New(cverr.KindEncryptionKeyRequired, "encrypted chunk requires a key")
		}
		if len(data) < pos+keyIDSize+saltSize+ivSize {
			return nil, cverr.New(cverr.KindChunkDecompressFailed, "truncated v2 blob")
		}
		var id [keyIDSize]byte
		copy(id[:], data[pos:pos+keyIDSize])
		pos += keyIDSize
		salt := data[pos : pos+saltSize]
		pos += saltSize
		iv := data[pos : pos+ivSize]
		pos += ivSize
		ct := data[pos:]

		ordered := orderByKeyID(keys.all(), id)
		for _, key := range ordered {
			derived, err := deriveKey(key, salt)
			if err != nil {
				continue
			}
			if pt, err := aesGCMOpen(derived, iv, ct); err == nil {
				return gunzipBytes(pt)
			}
		}
		return nil, cverr.New(cverr.KindEncryptionAuthFailed, "no key decrypted v2 chunk")

	default:
		return nil, cverr.New(cverr.KindChunkDecompressFailed, "unsupported chunk version")
	}
}

// orderByKeyID puts the key whose id matches first, so reads try the
// matching key before falling back to the remaining keys.
func orderByKeyID(keys [][]byte, id [keyIDSize]byte) [][]byte {
	ordered := make([][]byte, 0, len(keys))
	var rest [][]byte
	for _, k := range keys {
		if keyID(k) == id {
			ordered = append(ordered, k)
		} else {
			rest = append(rest, k)
		}
	}
	return append(ordered, rest...)
}

// Delete removes both forms of a chunk blob if present.
func (s *Store) Delete(sha string) error {
	var errs []error
	if err := os.Remove(s.plainPath(sha)); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := os.Remove(s.cipherPath(sha)); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return cverr.Wrap(cverr.KindChunkReadFailed, "delete chunk "+sha, errs[0])
	}
	return nil
}

func deriveKey(key, salt []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, key, salt, []byte(hkdfInfo))
	derived := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "derive chunk key", err)
	}
	return derived, nil
}

func aesGCMSeal(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "init aes cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "init gcm", err)
	}
	return gcm.Seal(nil, iv, plaintext, nil), nil
}

func aesGCMOpen(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, ciphertext, nil)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return cverr.Wrap(cverr.KindChunkReadFailed, "create temp chunk file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindChunkReadFailed, "write temp chunk file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindChunkReadFailed, "close temp chunk file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindChunkReadFailed, "rename temp chunk file", err)
	}
	return nil
}
