package stream

import (
	"errors"
	"io"
)

// ReadSize is the buffer size used by Pump for each read.
const ReadSize = 4096

// Pump reads r until the termination sentinel or EOF, feeding every fragment
// through a fresh Decoder. onFragment is called once per fragment read,
// with that fragment's decoded delta (possibly empty). A clean EOF without
// the sentinel is a normal end. Any other read error is returned as-is and
// the stream is abandoned.
func Pump(r io.Reader, onFragment func(delta string)) error {
	_, err := Drain(r, onFragment)
	return err
}

// Drain is Pump that also reports whether the sentinel was seen.
func Drain(r io.Reader, onFragment func(delta string)) (done bool, err error) {
	d := NewDecoder()
	buf := make([]byte, ReadSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			res := d.Feed(buf[:n])
			onFragment(res.Delta)
			if res.Done {
				return true, nil
			}
		}
		if errors.Is(rerr, io.EOF) {
			if res := d.Flush(); res.Delta != "" {
				onFragment(res.Delta)
			}
			return false, nil
		}
		if rerr != nil {
			return false, rerr
		}
	}
}
