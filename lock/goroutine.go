package lock

import (
	"bytes"
	"runtime"
)

var stackPrefix = []byte("goroutine ")

// ownerID identifies the calling goroutine by the number in the header of
// its stack trace ("goroutine 42 [running]:"). Only the header is read.
func ownerID() int64 {
	var buf [64]byte
	header := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], stackPrefix)
	var id int64
	for _, c := range header {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
