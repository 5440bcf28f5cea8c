package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// On-disk ICO layout, little endian. Sizes are fixed by the format.
type icoDir struct {
	Reserved uint16
	Type     uint16 // 1 = icon, 2 = cursor
	Count    uint16
}

type icoDirEntry struct {
	Width, Height uint8 // 0 stands for 256
	Colors        uint8
	Reserved      uint8
	Planes        uint16
	BitCount      uint16
	BytesInRes    uint32
	ImageOffset   uint32
}

var (
	icoDirLen   = binary.Size(icoDir{})
	icoEntryLen = binary.Size(icoDirEntry{})
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// icoImage is one encoded PNG frame destined for an ICO directory.
type icoImage struct {
	Data          []byte
	Width, Height int
}

// icoDim stores a pixel dimension in the single byte the directory allows.
func icoDim(n int) uint8 {
	if n >= 256 {
		return 0
	}
	return uint8(n)
}

// packICO writes a directory followed by the PNG frames back to back.
// Windows reads PNG frames from Vista onwards.
func packICO(images ...icoImage) []byte {
	var buf bytes.Buffer
	hdr := icoDir{Type: 1, Count: uint16(len(images))}
	binary.Write(&buf, binary.LittleEndian, hdr)

	offset := uint32(icoDirLen + len(images)*icoEntryLen)
	for _, img := range images {
		binary.Write(&buf, binary.LittleEndian, icoDirEntry{
			Width:       icoDim(img.Width),
			Height:      icoDim(img.Height),
			Planes:      1,
			BitCount:    32,
			BytesInRes:  uint32(len(img.Data)),
			ImageOffset: offset,
		})
		offset += uint32(len(img.Data))
	}
	for _, img := range images {
		buf.Write(img.Data)
	}
	return buf.Bytes()
}

// icoEntry describes one image in an ICO directory.
type icoEntry struct {
	Width, Height int // 256 when the stored byte is 0
	Planes        int
	BitsPerPixel  int
	Size          uint32
	Offset        uint32
	PNG           bool
}

var errNotICO = errors.New("not an ICO file")

// readICOHeader parses the directory and checks each payload lies in data.
func readICOHeader(data []byte) ([]icoEntry, error) {
	r := bytes.NewReader(data)
	var hdr icoDir
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %d bytes", errNotICO, len(data))
	}
	if hdr.Reserved != 0 || hdr.Type != 1 {
		return nil, errNotICO
	}

	entries := make([]icoEntry, 0, hdr.Count)
	for i := 0; i < int(hdr.Count); i++ {
		var de icoDirEntry
		if err := binary.Read(r, binary.LittleEndian, &de); err != nil {
			return nil, fmt.Errorf("ico directory truncated: %d entries in %d bytes", hdr.Count, len(data))
		}
		ent := icoEntry{
			Width:        int(de.Width),
			Height:       int(de.Height),
			Planes:       int(de.Planes),
			BitsPerPixel: int(de.BitCount),
			Size:         de.BytesInRes,
			Offset:       de.ImageOffset,
		}
		if ent.Width == 0 {
			ent.Width = 256
		}
		if ent.Height == 0 {
			ent.Height = 256
		}
		end := uint64(ent.Offset) + uint64(ent.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("ico entry %d: payload [%d,%d) beyond %d bytes", i, ent.Offset, end, len(data))
		}
		ent.PNG = bytes.HasPrefix(data[ent.Offset:end], pngMagic)
		entries = append(entries, ent)
	}
	return entries, nil
}
