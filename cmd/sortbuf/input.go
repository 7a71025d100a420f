package main

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

const maxLineBytes = 64 * 1024 * 1024

// eachLine calls fn for every line of the file at path, or of stdin when path
// is "-". Line terminators are stripped. Regular files are memory mapped and
// read once front to back.
func eachLine(path string, stdin io.Reader, fn func(line string) error) error {
	if path == "-" {
		return eachScannedLine(stdin, fn)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open input")
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if !st.Mode().IsRegular() {
		return eachScannedLine(f, fn)
	}
	if st.Size() == 0 {
		return nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "mmap %s", path)
	}
	defer m.Unmap()
	adviseSequential(m)

	data := []byte(m)
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		// the mapping is released on return, so each line is copied
		if err := fn(string(bytes.TrimSuffix(line, []byte{'\r'}))); err != nil {
			return err
		}
	}
	return nil
}

func eachScannedLine(r io.Reader, fn func(line string) error) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for s.Scan() {
		if err := fn(string(bytes.TrimSuffix(s.Bytes(), []byte{'\r'}))); err != nil {
			return err
		}
	}
	return errors.Wrap(s.Err(), "read input")
}
