package image

import "fmt"

// Format identifies how an image file is laid out.
type Format int

// Image formats.
const (
	// FormatRaw is any file without a recognized header; it is flashed as-is
	FormatRaw Format = iota

	// FormatSparse is an Android sparse image
	FormatSparse

	// FormatBoot is an Android boot image
	FormatBoot
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatSparse:
		return "sparse"
	case FormatBoot:
		return "boot"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Image represents a loaded image file.
type Image struct {
	// Format is the detected layout
	Format Format

	// Data is the complete file contents, sent to the device unchanged
	Data []byte

	// Sparse is set for FormatSparse
	Sparse *SparseHeader

	// Boot is set for FormatBoot
	Boot *BootHeader
}

// Size returns the number of bytes that will be downloaded.
func (img *Image) Size() int {
	return len(img.Data)
}

// SparseHeader is the file header of an Android sparse image.
type SparseHeader struct {
	MajorVersion    uint16
	MinorVersion    uint16
	FileHeaderSize  uint16
	ChunkHeaderSize uint16

	// BlockSize is the size of one block in bytes (a multiple of 4)
	BlockSize uint32

	// TotalBlocks is the number of blocks in the expanded image
	TotalBlocks uint32

	// TotalChunks is the number of chunks in the sparse file
	TotalChunks uint32

	// ImageChecksum is the CRC32 of the expanded image (often zero)
	ImageChecksum uint32
}

// ExpandedSize returns the size the image occupies once written to a partition.
func (h *SparseHeader) ExpandedSize() int64 {
	return int64(h.BlockSize) * int64(h.TotalBlocks)
}

// BootHeader holds the fields of an Android boot image header.
// Name and SecondSize exist only in header versions 0 to 2.
type BootHeader struct {
	HeaderVersion uint32
	KernelSize    uint32
	RamdiskSize   uint32
	SecondSize    uint32

	// PageSize is read from the header for versions 0 to 2 and is
	// fixed at 4096 from version 3
	PageSize  uint32
	OSVersion uint32

	Name    string
	Cmdline string
}
