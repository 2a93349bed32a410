// Package vfs is the trivial in-memory virtual filesystem vesper's
// `import` resolution reads source files through, plus a read-only
// pack archive format bundling several files into one seekable blob.
// It is an external collaborator of the codegen core: the core never
// touches a filesystem, it only consumes already-loaded source text.
//
// Grounded on horse64's vfspak.c/vfspak.h, trimmed down from a PhysFS-
// backed mount layer (zip archives, binary-appended packs located by a
// magic trailer) to a single self-contained format: no third-party
// library in the example pack covers this niche, so the pack format
// itself is a small from-scratch binary encoding rather than an
// adopted dependency.
package vfs

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
)

// FS is anything import resolution can read source text from: an
// in-memory tree (MemFS) or a read-only archive (Pack).
type FS interface {
	ReadFile(name string) ([]byte, error)
	Exists(name string) bool
}

// MemFS is a flat in-memory filesystem, the default FS a freshly
// started compiler uses before any pack is mounted.
type MemFS struct {
	files map[string][]byte
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// Add registers name's contents, overwriting any previous entry.
func (m *MemFS) Add(name string, data []byte) {
	m.files[path.Clean(name)] = data
}

func (m *MemFS) ReadFile(name string) ([]byte, error) {
	data, ok := m.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("vfs: no such file: %s", name)
	}
	return data, nil
}

func (m *MemFS) Exists(name string) bool {
	_, ok := m.files[path.Clean(name)]
	return ok
}

// DiskFS reads straight from the host filesystem, rooted at Root.
// Used by the CLI to resolve `import` paths relative to the file
// being compiled, without needing a pack.
type DiskFS struct {
	Root string
}

func (d DiskFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(path.Join(d.Root, name))
}

func (d DiskFS) Exists(name string) bool {
	_, err := os.Stat(path.Join(d.Root, name))
	return err == nil
}

// packMagic tags the start of a pack blob so OpenPack can reject
// anything that clearly isn't one before it starts trusting offsets
// read from it.
var packMagic = [8]byte{'V', 'S', 'P', 'P', 'A', 'K', '0', '1'}

// entry is one file's location inside a Pack's data section.
type entry struct {
	offset int64
	length int64
}

// Pack is a read-only archive of named byte blobs, the bundled-
// multiple-files counterpart of vfspak.c's appended/mounted pak
// (simplified here to one flat blob instead of a PhysFS-mounted zip
// with an embedded-in-binary magic trailer).
type Pack struct {
	entries map[string]entry
	data    io.ReaderAt
}

// PackBuilder accumulates named files before writing them out as one
// pack blob via WriteTo.
type PackBuilder struct {
	names []string
	files map[string][]byte
}

// NewPackBuilder returns an empty builder.
func NewPackBuilder() *PackBuilder {
	return &PackBuilder{files: make(map[string][]byte)}
}

// Add stages name's contents for the next WriteTo call. Re-adding a
// name replaces its contents but keeps its original write order.
func (b *PackBuilder) Add(name string, data []byte) {
	if _, exists := b.files[name]; !exists {
		b.names = append(b.names, name)
	}
	b.files[name] = data
}

// WriteTo serializes every staged file into w as: an 8-byte magic, a
// uint32 entry count, then per entry a uint32 name length, the name,
// a uint64 data length, and the data itself.
func (b *PackBuilder) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64

	written, err := bw.Write(packMagic[:])
	n += int64(written)
	if err != nil {
		return n, err
	}

	if err := binary.Write(bw, binary.BigEndian, uint32(len(b.names))); err != nil {
		return n, err
	}
	n += 4

	for _, name := range b.names {
		data := b.files[name]
		if err := binary.Write(bw, binary.BigEndian, uint32(len(name))); err != nil {
			return n, err
		}
		n += 4
		written, err := bw.WriteString(name)
		n += int64(written)
		if err != nil {
			return n, err
		}
		if err := binary.Write(bw, binary.BigEndian, uint64(len(data))); err != nil {
			return n, err
		}
		n += 8
		written, err = bw.Write(data)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}

	return n, bw.Flush()
}

// OpenPack reads a pack written by PackBuilder.WriteTo out of r, which
// must expose size readable bytes starting at offset 0.
func OpenPack(r io.ReaderAt, size int64) (*Pack, error) {
	sr := io.NewSectionReader(r, 0, size)

	var magic [8]byte
	if _, err := io.ReadFull(sr, magic[:]); err != nil {
		return nil, fmt.Errorf("vfs: reading pack header: %w", err)
	}
	if magic != packMagic {
		return nil, fmt.Errorf("vfs: not a vesper pack (bad magic)")
	}

	var count uint32
	if err := binary.Read(sr, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("vfs: reading pack entry count: %w", err)
	}

	entries := make(map[string]entry, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint32
		if err := binary.Read(sr, binary.BigEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("vfs: reading entry %d name length: %w", i, err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(sr, nameBuf); err != nil {
			return nil, fmt.Errorf("vfs: reading entry %d name: %w", i, err)
		}
		var dataLen uint64
		if err := binary.Read(sr, binary.BigEndian, &dataLen); err != nil {
			return nil, fmt.Errorf("vfs: reading entry %d data length: %w", i, err)
		}
		offset, err := sr.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("vfs: locating entry %d data: %w", i, err)
		}
		if _, err := sr.Seek(int64(dataLen), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("vfs: skipping entry %d data: %w", i, err)
		}
		entries[string(nameBuf)] = entry{offset: offset, length: int64(dataLen)}
	}

	return &Pack{entries: entries, data: sr}, nil
}

func (p *Pack) ReadFile(name string) ([]byte, error) {
	e, ok := p.entries[name]
	if !ok {
		return nil, fmt.Errorf("vfs: no such file in pack: %s", name)
	}
	buf := make([]byte, e.length)
	if _, err := p.data.ReadAt(buf, e.offset); err != nil {
		return nil, fmt.Errorf("vfs: reading %s from pack: %w", name, err)
	}
	return buf, nil
}

func (p *Pack) Exists(name string) bool {
	_, ok := p.entries[name]
	return ok
}

// Files returns every name stored in the pack, in no particular
// order.
func (p *Pack) Files() []string {
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	return names
}
