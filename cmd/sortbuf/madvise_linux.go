//go:build linux

package main

import "golang.org/x/sys/unix"

// adviseSequential enables aggressive readahead for a mapping read once in order
func adviseSequential(data []byte) {
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
