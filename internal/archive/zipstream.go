// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package archive

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// Record sizes of the zip format, without variable-length names and extras.
const (
	localHeaderLen       = 30
	dataDescriptorLen    = 16
	dataDescriptor64Len  = 24
	centralHeaderLen     = 46
	endRecordLen         = 22
	end64RecordLen       = 56
	end64LocatorLen      = 20
	localZip64ExtraLen   = 20 // id, size, uncompressed, compressed
	centralZip64ExtraLen = 28 // id, size, uncompressed, compressed, offset

	sigLocalHeader    = 0x04034b50
	sigDataDescriptor = 0x08074b50
	sigCentralHeader  = 0x02014b50
	sigEnd            = 0x06054b50
	sigEnd64          = 0x06064b50
	sigEnd64Locator   = 0x07064b50

	zip64ExtraID = 0x0001

	// data descriptor follows the entry, name is UTF-8
	entryFlags = 0x0008 | 0x0800

	versionStandard = 20
	versionZip64    = 45

	max16 = 0xffff
	max32 = 0xffffffff
)

// useZip64 decides the format for the whole archive. It is called once per
// archive; entries are never mixed.
func useZip64(total int64, count int, threshold uint64) bool {
	return uint64(total) > threshold || count > max16
}

// archiveSize is the exact byte length of an archive of stored entries with
// the given names and sizes.
func archiveSize(names []string, sizes []int64, zip64 bool) int64 {
	var n int64
	for i, name := range names {
		nl := int64(len(name))
		if zip64 {
			n += localHeaderLen + nl + localZip64ExtraLen + sizes[i] + dataDescriptor64Len
			n += centralHeaderLen + nl + centralZip64ExtraLen
		} else {
			n += localHeaderLen + nl + sizes[i] + dataDescriptorLen
			n += centralHeaderLen + nl
		}
	}
	if zip64 {
		n += end64RecordLen + end64LocatorLen
	}
	return n + endRecordLen
}

type zipEntry struct {
	name   string
	crc    uint32
	size   uint64
	offset uint64
}

// zipStream writes stored (uncompressed) entries with trailing data
// descriptors, so nothing has to be known about an entry before its bytes
// have been streamed.
type zipStream struct {
	w       io.Writer
	zip64   bool
	written uint64
	entries []zipEntry
	current *zipEntry
	modTime uint16
	modDate uint16
}

func newZipStream(w io.Writer, zip64 bool, mod time.Time) *zipStream {
	t, d := msDosTimeDate(mod)
	return &zipStream{w: w, zip64: zip64, modTime: t, modDate: d}
}

func (z *zipStream) version() uint16 {
	if z.zip64 {
		return versionZip64
	}
	return versionStandard
}

func (z *zipStream) emit(b []byte) error {
	n, err := z.w.Write(b)
	z.written += uint64(n)
	return err
}

// begin writes the local header of a new entry.
func (z *zipStream) begin(name string) error {
	if z.current != nil {
		return fmt.Errorf("zip: entry %q still open", z.current.name)
	}
	z.current = &zipEntry{name: name, offset: z.written}

	b := make([]byte, 0, localHeaderLen+len(name)+localZip64ExtraLen)
	b = binary.LittleEndian.AppendUint32(b, sigLocalHeader)
	b = binary.LittleEndian.AppendUint16(b, z.version())
	b = binary.LittleEndian.AppendUint16(b, entryFlags)
	b = binary.LittleEndian.AppendUint16(b, 0) // stored
	b = binary.LittleEndian.AppendUint16(b, z.modTime)
	b = binary.LittleEndian.AppendUint16(b, z.modDate)
	b = binary.LittleEndian.AppendUint32(b, 0) // crc in descriptor
	if z.zip64 {
		b = binary.LittleEndian.AppendUint32(b, max32)
		b = binary.LittleEndian.AppendUint32(b, max32)
	} else {
		b = binary.LittleEndian.AppendUint32(b, 0)
		b = binary.LittleEndian.AppendUint32(b, 0)
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(name)))
	if z.zip64 {
		b = binary.LittleEndian.AppendUint16(b, localZip64ExtraLen)
	} else {
		b = binary.LittleEndian.AppendUint16(b, 0)
	}
	b = append(b, name...)
	if z.zip64 {
		b = binary.LittleEndian.AppendUint16(b, zip64ExtraID)
		b = binary.LittleEndian.AppendUint16(b, localZip64ExtraLen-4)
		b = binary.LittleEndian.AppendUint64(b, 0)
		b = binary.LittleEndian.AppendUint64(b, 0)
	}
	return z.emit(b)
}

// Write appends entry data.
func (z *zipStream) Write(p []byte) (int, error) {
	if z.current == nil {
		return 0, fmt.Errorf("zip: write outside an entry")
	}
	n, err := z.w.Write(p)
	z.written += uint64(n)
	z.current.crc = crc32.Update(z.current.crc, crc32.IEEETable, p[:n])
	z.current.size += uint64(n)
	return n, err
}

// end writes the data descriptor of the open entry.
func (z *zipStream) end() error {
	e := z.current
	if e == nil {
		return fmt.Errorf("zip: no open entry")
	}
	z.current = nil
	z.entries = append(z.entries, *e)

	b := make([]byte, 0, dataDescriptor64Len)
	b = binary.LittleEndian.AppendUint32(b, sigDataDescriptor)
	b = binary.LittleEndian.AppendUint32(b, e.crc)
	if z.zip64 {
		b = binary.LittleEndian.AppendUint64(b, e.size)
		b = binary.LittleEndian.AppendUint64(b, e.size)
	} else {
		b = binary.LittleEndian.AppendUint32(b, uint32(e.size))
		b = binary.LittleEndian.AppendUint32(b, uint32(e.size))
	}
	return z.emit(b)
}

// close writes the central directory and the end records.
func (z *zipStream) close() error {
	if z.current != nil {
		return fmt.Errorf("zip: entry %q still open", z.current.name)
	}
	cdStart := z.written
	for _, e := range z.entries {
		if err := z.emit(z.centralHeader(e)); err != nil {
			return err
		}
	}
	cdSize := z.written - cdStart
	count := uint64(len(z.entries))

	if z.zip64 {
		end64At := z.written
		b := make([]byte, 0, end64RecordLen+end64LocatorLen)
		b = binary.LittleEndian.AppendUint32(b, sigEnd64)
		b = binary.LittleEndian.AppendUint64(b, end64RecordLen-12)
		b = binary.LittleEndian.AppendUint16(b, versionZip64)
		b = binary.LittleEndian.AppendUint16(b, versionZip64)
		b = binary.LittleEndian.AppendUint32(b, 0)
		b = binary.LittleEndian.AppendUint32(b, 0)
		b = binary.LittleEndian.AppendUint64(b, count)
		b = binary.LittleEndian.AppendUint64(b, count)
		b = binary.LittleEndian.AppendUint64(b, cdSize)
		b = binary.LittleEndian.AppendUint64(b, cdStart)

		b = binary.LittleEndian.AppendUint32(b, sigEnd64Locator)
		b = binary.LittleEndian.AppendUint32(b, 0)
		b = binary.LittleEndian.AppendUint64(b, end64At)
		b = binary.LittleEndian.AppendUint32(b, 1)
		if err := z.emit(b); err != nil {
			return err
		}
	}

	b := make([]byte, 0, endRecordLen)
	b = binary.LittleEndian.AppendUint32(b, sigEnd)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint16(b, 0)
	if z.zip64 {
		b = binary.LittleEndian.AppendUint16(b, max16)
		b = binary.LittleEndian.AppendUint16(b, max16)
		b = binary.LittleEndian.AppendUint32(b, max32)
		b = binary.LittleEndian.AppendUint32(b, max32)
	} else {
		b = binary.LittleEndian.AppendUint16(b, uint16(count))
		b = binary.LittleEndian.AppendUint16(b, uint16(count))
		b = binary.LittleEndian.AppendUint32(b, uint32(cdSize))
		b = binary.LittleEndian.AppendUint32(b, uint32(cdStart))
	}
	b = binary.LittleEndian.AppendUint16(b, 0)
	return z.emit(b)
}

func (z *zipStream) centralHeader(e zipEntry) []byte {
	b := make([]byte, 0, centralHeaderLen+len(e.name)+centralZip64ExtraLen)
	b = binary.LittleEndian.AppendUint32(b, sigCentralHeader)
	b = binary.LittleEndian.AppendUint16(b, z.version()) // made by
	b = binary.LittleEndian.AppendUint16(b, z.version()) // needed
	b = binary.LittleEndian.AppendUint16(b, entryFlags)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint16(b, z.modTime)
	b = binary.LittleEndian.AppendUint16(b, z.modDate)
	b = binary.LittleEndian.AppendUint32(b, e.crc)
	if z.zip64 {
		b = binary.LittleEndian.AppendUint32(b, max32)
		b = binary.LittleEndian.AppendUint32(b, max32)
	} else {
		b = binary.LittleEndian.AppendUint32(b, uint32(e.size))
		b = binary.LittleEndian.AppendUint32(b, uint32(e.size))
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(e.name)))
	if z.zip64 {
		b = binary.LittleEndian.AppendUint16(b, centralZip64ExtraLen)
	} else {
		b = binary.LittleEndian.AppendUint16(b, 0)
	}
	b = binary.LittleEndian.AppendUint16(b, 0) // comment
	b = binary.LittleEndian.AppendUint16(b, 0) // disk
	b = binary.LittleEndian.AppendUint16(b, 0) // internal attrs
	b = binary.LittleEndian.AppendUint32(b, 0) // external attrs
	if z.zip64 {
		b = binary.LittleEndian.AppendUint32(b, max32)
	} else {
		b = binary.LittleEndian.AppendUint32(b, uint32(e.offset))
	}
	b = append(b, e.name...)
	if z.zip64 {
		b = binary.LittleEndian.AppendUint16(b, zip64ExtraID)
		b = binary.LittleEndian.AppendUint16(b, centralZip64ExtraLen-4)
		b = binary.LittleEndian.AppendUint64(b, e.size)
		b = binary.LittleEndian.AppendUint64(b, e.size)
		b = binary.LittleEndian.AppendUint64(b, e.offset)
	}
	return b
}

func msDosTimeDate(t time.Time) (uint16, uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	date := uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	clock := uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return clock, date
}
