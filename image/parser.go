package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Android sparse image constants.
const (
	// SparseMagic is the little-endian magic at offset 0
	SparseMagic = 0xED26FF3A

	// SparseHeaderSize is the minimum file header size
	SparseHeaderSize = 28

	// SparseChunkHeaderSize is the minimum chunk header size
	SparseChunkHeaderSize = 12
)

// Android boot image constants.
const (
	// BootMagic starts every boot image
	BootMagic = "ANDROID!"

	// BootHeaderSizeV0 covers all fields read for versions 0 to 2
	BootHeaderSizeV0 = 1632

	// BootHeaderSizeV3 covers all fields read for versions 3 and later
	BootHeaderSizeV3 = 1580

	// BootPageSizeV3 is the fixed page size from version 3
	BootPageSizeV3 = 4096

	bootNameOffset     = 48
	bootNameSize       = 16
	bootCmdlineOffset  = 64
	bootCmdlineSize    = 512
	bootVersionOffset  = 40
	bootCmdlineOffset3 = 44
	bootCmdlineSize3   = 1536
)

// Errors returned while parsing.
var (
	// ErrEmpty is returned for a zero-length image
	ErrEmpty = errors.New("empty image")

	// ErrTruncated is returned when a recognized header is cut short
	ErrTruncated = errors.New("truncated image header")
)

// Load reads an image file from the given path and detects its format.
//
// Example:
//
//	img, err := image.Load("boot.img")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s image, %d bytes\n", img.Format, img.Size())
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader reads a whole image from any io.Reader.
// This is useful for testing and reading from non-file sources.
func ParseReader(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Parse(data)
}

// Parse detects the format of data and parses its header. Data is kept,
// not copied.
func Parse(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	img := &Image{Format: FormatRaw, Data: data}

	switch {
	case len(data) >= 4 && binary.LittleEndian.Uint32(data) == SparseMagic:
		h, err := parseSparseHeader(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sparse header: %w", err)
		}
		img.Format = FormatSparse
		img.Sparse = h

	case bytes.HasPrefix(data, []byte(BootMagic)):
		h, err := parseBootHeader(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse boot header: %w", err)
		}
		img.Format = FormatBoot
		img.Boot = h
	}

	return img, nil
}

// parseSparseHeader parses the sparse file header.
//
// Header format (little-endian):
//
//	[Magic(4)][Major(2)][Minor(2)][FileHdrSize(2)][ChunkHdrSize(2)]
//	[BlockSize(4)][TotalBlocks(4)][TotalChunks(4)][Checksum(4)]
func parseSparseHeader(data []byte) (*SparseHeader, error) {
	if len(data) < SparseHeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrTruncated, len(data), SparseHeaderSize)
	}

	le := binary.LittleEndian
	h := &SparseHeader{
		MajorVersion:    le.Uint16(data[4:]),
		MinorVersion:    le.Uint16(data[6:]),
		FileHeaderSize:  le.Uint16(data[8:]),
		ChunkHeaderSize: le.Uint16(data[10:]),
		BlockSize:       le.Uint32(data[12:]),
		TotalBlocks:     le.Uint32(data[16:]),
		TotalChunks:     le.Uint32(data[20:]),
		ImageChecksum:   le.Uint32(data[24:]),
	}

	if h.MajorVersion != 1 {
		return nil, fmt.Errorf("unsupported major version %d", h.MajorVersion)
	}
	if h.FileHeaderSize < SparseHeaderSize {
		return nil, fmt.Errorf("invalid file header size %d", h.FileHeaderSize)
	}
	if h.ChunkHeaderSize < SparseChunkHeaderSize {
		return nil, fmt.Errorf("invalid chunk header size %d", h.ChunkHeaderSize)
	}
	if h.BlockSize == 0 || h.BlockSize%4 != 0 {
		return nil, fmt.Errorf("invalid block size %d", h.BlockSize)
	}
	return h, nil
}

// parseBootHeader parses a boot image header. The header version at offset
// 40 selects the layout:
//
//	v0-v2: [Magic(8)][KernelSize(4)][KernelAddr(4)][RamdiskSize(4)][RamdiskAddr(4)]
//	       [SecondSize(4)][SecondAddr(4)][TagsAddr(4)][PageSize(4)]
//	       [HeaderVersion(4)][OSVersion(4)][Name(16)][Cmdline(512)]...
//	v3+:   [Magic(8)][KernelSize(4)][RamdiskSize(4)][OSVersion(4)][HeaderSize(4)]
//	       [Reserved(16)][HeaderVersion(4)][Cmdline(1536)]
func parseBootHeader(data []byte) (*BootHeader, error) {
	if len(data) < bootVersionOffset+4 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTruncated, len(data))
	}

	le := binary.LittleEndian
	version := le.Uint32(data[bootVersionOffset:])

	if version >= 3 {
		if len(data) < BootHeaderSizeV3 {
			return nil, fmt.Errorf("%w: v%d header needs %d bytes, got %d", ErrTruncated, version, BootHeaderSizeV3, len(data))
		}
		return &BootHeader{
			HeaderVersion: version,
			KernelSize:    le.Uint32(data[8:]),
			RamdiskSize:   le.Uint32(data[12:]),
			OSVersion:     le.Uint32(data[16:]),
			PageSize:      BootPageSizeV3,
			Cmdline:       cString(data[bootCmdlineOffset3 : bootCmdlineOffset3+bootCmdlineSize3]),
		}, nil
	}

	if len(data) < BootHeaderSizeV0 {
		return nil, fmt.Errorf("%w: v%d header needs %d bytes, got %d", ErrTruncated, version, BootHeaderSizeV0, len(data))
	}
	h := &BootHeader{
		HeaderVersion: version,
		KernelSize:    le.Uint32(data[8:]),
		RamdiskSize:   le.Uint32(data[16:]),
		SecondSize:    le.Uint32(data[24:]),
		PageSize:      le.Uint32(data[36:]),
		OSVersion:     le.Uint32(data[44:]),
		Name:          cString(data[bootNameOffset : bootNameOffset+bootNameSize]),
		Cmdline:       cString(data[bootCmdlineOffset : bootCmdlineOffset+bootCmdlineSize]),
	}
	if h.PageSize == 0 {
		return nil, fmt.Errorf("invalid page size 0")
	}
	return h, nil
}

// cString returns b up to its first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
