// Package image loads images to be flashed and identifies their format.
//
// # Formats
//
// Android sparse image (magic 0xED26FF3A, little-endian):
//
//	[Magic(4)][Major(2)][Minor(2)][FileHdrSize(2)][ChunkHdrSize(2)]
//	[BlockSize(4)][TotalBlocks(4)][TotalChunks(4)][Checksum(4)]
//
// Android boot image ("ANDROID!"), header version at offset 40:
//
//	v0-v2: kernel, ramdisk and second stage sizes, page size, name, cmdline
//	v3+:   kernel and ramdisk sizes, cmdline; page size fixed at 4096
//
// Anything else is a raw image.
//
// Images are always downloaded unchanged; the header is parsed only for
// reporting and validation. Sparse images are not split or expanded.
//
// # Usage
//
//	img, err := image.Load("system.img")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if img.Format == image.FormatSparse {
//	    fmt.Printf("expands to %d bytes\n", img.Sparse.ExpandedSize())
//	}
//	err = client.FlashImage(ctx, "system", img.Data)
//
// # Error Handling
//
// Parse returns errors for:
//   - Empty input (ErrEmpty)
//   - Recognized headers cut short (ErrTruncated)
//   - Sparse headers with unsupported version or invalid sizes
//   - Boot headers with a zero page size
package image
