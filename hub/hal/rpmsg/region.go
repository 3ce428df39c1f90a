package rpmsg

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a shared memory window mapped from a device or file, such as
// the IMR area that holds the firmware loop buffer.
type Region struct {
	f       *os.File
	mapping []byte
	data    []byte
}

// MapRegion maps size bytes of path starting at offset. The offset need
// not be page aligned.
func MapRegion(path string, offset int64, size int) (*Region, error) {
	if offset < 0 || size <= 0 {
		return nil, fmt.Errorf("map %s: bad window %d+%d", path, offset, size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}

	page := int64(unix.Getpagesize())
	base := offset &^ (page - 1)
	skip := int(offset - base)

	mapping, err := unix.Mmap(int(f.Fd()), base, skip+size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Region{f: f, mapping: mapping, data: mapping[skip : skip+size]}, nil
}

// Bytes returns the mapped window. It is invalid after Close.
func (r *Region) Bytes() []byte { return r.data }

// Close unmaps the window and closes the backing file.
func (r *Region) Close() error {
	err := unix.Munmap(r.mapping)
	r.mapping, r.data = nil, nil
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
