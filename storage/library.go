package storage

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/colorfulnotion/avm/common"
	"github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/vm"
	"github.com/syndtr/goleveldb/leveldb"
)

// Key layout:
//
//	img:<32 byte hash>  raw 1024 byte image
//	name:<name>         32 byte image hash
//	snap:<name>         CBOR encoded vm.State
var (
	prefixImage    = []byte("img:")
	prefixName     = []byte("name:")
	prefixSnapshot = []byte("snap:")
)

func imageKey(h common.Hash) []byte { return append(append([]byte{}, prefixImage...), h.Bytes()...) }
func nameKey(name string) []byte    { return append(append([]byte{}, prefixName...), name...) }
func snapKey(name string) []byte    { return append(append([]byte{}, prefixSnapshot...), name...) }

// Entry is one named image.
type Entry struct {
	Name string      `json:"name"`
	Hash common.Hash `json:"hash"`
}

// Library stores program images by content hash, names pointing at them,
// and named machine snapshots.
type Library struct {
	ps *PersistenceStore
}

// OpenLibrary opens the library at path; "" keeps it in memory.
func OpenLibrary(path string) (*Library, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, err
	}
	log.Debug(log.StoreModule, "library opened", "path", ps.Path())
	return NewLibrary(ps), nil
}

func NewLibrary(ps *PersistenceStore) *Library {
	return &Library{ps: ps}
}

func (l *Library) Close() error {
	return l.ps.Close()
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

// PutImage stores img under its content hash and, if name is set, points
// name at it. Renaming an existing name simply moves the pointer.
func (l *Library) PutImage(name string, img *program.Image) (common.Hash, error) {
	h := img.Hash()
	batch := new(leveldb.Batch)
	batch.Put(imageKey(h), img.Bytes())
	if name != "" {
		if err := validName(name); err != nil {
			return common.Hash{}, err
		}
		batch.Put(nameKey(name), h.Bytes())
	}
	if err := l.ps.Write(batch); err != nil {
		return common.Hash{}, fmt.Errorf("put image %s: %w", h, err)
	}
	log.Debug(log.StoreModule, "image stored", "name", name, "hash", h.Short())
	return h, nil
}

// Resolve maps a name or a 0x-prefixed hash to the stored image hash.
func (l *Library) Resolve(ref string) (common.Hash, error) {
	if common.IsHexHash(ref) {
		h := common.HexToHash(ref)
		ok, err := l.ps.Has(imageKey(h))
		if err != nil {
			return common.Hash{}, err
		}
		if !ok {
			return common.Hash{}, fmt.Errorf("image %s: %w", ref, avmerrors.ErrSImageNotFound)
		}
		return h, nil
	}
	data, ok, err := l.ps.Get(nameKey(ref))
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return common.Hash{}, fmt.Errorf("image %q: %w", ref, avmerrors.ErrSImageNotFound)
	}
	return common.BytesToHash(data), nil
}

// GetImage loads the image named by ref (a name or a hash).
func (l *Library) GetImage(ref string) (*program.Image, error) {
	h, err := l.Resolve(ref)
	if err != nil {
		return nil, err
	}
	data, ok, err := l.ps.Get(imageKey(h))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("image %s referenced by %q: %w", h, ref, avmerrors.ErrSImageNotFound)
	}
	img, err := program.New(data)
	if err != nil {
		return nil, fmt.Errorf("stored image %s: %w", h, err)
	}
	if img.Hash() != h {
		return nil, fmt.Errorf("stored image %s hashes to %s", h, img.Hash())
	}
	return img, nil
}

// List returns every named image, ordered by name.
func (l *Library) List() ([]Entry, error) {
	kvs, err := l.ps.GetWithPrefix(prefixName)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, Entry{
			Name: string(kv[0][len(prefixName):]),
			Hash: common.BytesToHash(kv[1]),
		})
	}
	return out, nil
}

// DeleteImage removes name. The image itself goes too once no other name
// refers to it.
func (l *Library) DeleteImage(name string) error {
	if common.IsHexHash(name) {
		return fmt.Errorf("delete by name, not hash: %q", name)
	}
	h, err := l.Resolve(name)
	if err != nil {
		return err
	}
	entries, err := l.List()
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(nameKey(name))
	shared := false
	for _, e := range entries {
		if e.Name != name && e.Hash == h {
			shared = true
			break
		}
	}
	if !shared {
		batch.Delete(imageKey(h))
	}
	log.Debug(log.StoreModule, "image deleted", "name", name, "hash", h.Short(), "shared", shared)
	return l.ps.Write(batch)
}

// PutSnapshot stores s under name, replacing any previous snapshot.
func (l *Library) PutSnapshot(name string, s *vm.State) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := vm.MarshalState(s)
	if err != nil {
		return err
	}
	log.Debug(log.StoreModule, "snapshot stored", "name", name, "pc", s.PC, "steps", s.Steps, "bytes", len(data))
	return l.ps.Put(snapKey(name), data)
}

func (l *Library) GetSnapshot(name string) (*vm.State, error) {
	data, ok, err := l.ps.Get(snapKey(name))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("snapshot %q: %w", name, avmerrors.ErrSSnapshotNotFound)
	}
	return vm.UnmarshalState(data)
}

// Snapshots lists snapshot names in order.
func (l *Library) Snapshots() ([]string, error) {
	kvs, err := l.ps.GetWithPrefix(prefixSnapshot)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		names = append(names, string(kv[0][len(prefixSnapshot):]))
	}
	return names, nil
}

func (l *Library) DeleteSnapshot(name string) error {
	ok, err := l.ps.Has(snapKey(name))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("snapshot %q: %w", name, avmerrors.ErrSSnapshotNotFound)
	}
	return l.ps.Delete(snapKey(name))
}
