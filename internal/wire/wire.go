// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package wire implements the handshake and message framing: an 8-byte
// greeting, then repeated <u64 length BE><payload> frames.
package wire

import (
	"encoding/binary"
)

// GreetingSize is the fixed handshake length: 00 53 50 00 <proto:u16 BE> 00 00.
const GreetingSize = 8

var magic = [4]byte{0x00, 0x53, 0x50, 0x00}

// Greeting builds the 8-byte handshake message declaring protoID.
func Greeting(protoID uint16) [GreetingSize]byte {
	var g [GreetingSize]byte
	copy(g[0:4], magic[:])
	binary.BigEndian.PutUint16(g[4:6], protoID)
	// g[6:8] left zero
	return g
}

// CheckGreeting validates a received greeting against the expected peer
// protocol id. It returns false on any mismatch (bad magic, wrong peer id,
// or non-zero reserved bytes), in which case the pipe must go Dead with
// InvalidData.
func CheckGreeting(b []byte, expectPeerID uint16) bool {
	if len(b) != GreetingSize {
		return false
	}
	if b[0] != magic[0] || b[1] != magic[1] || b[2] != magic[2] || b[3] != magic[3] {
		return false
	}
	if binary.BigEndian.Uint16(b[4:6]) != expectPeerID {
		return false
	}
	if b[6] != 0 || b[7] != 0 {
		return false
	}
	return true
}

// LengthPrefixSize is the size of the u64 BE frame length prefix.
const LengthPrefixSize = 8

// PutLength writes the u64 BE length prefix for a payload of n bytes.
func PutLength(dst []byte, n uint64) {
	binary.BigEndian.PutUint64(dst, n)
}

// Length reads a u64 BE length prefix.
func Length(src []byte) uint64 {
	return binary.BigEndian.Uint64(src)
}
