package device

import "unsafe"

// bytesAsFloat32 reinterprets a native-endian f32 device buffer. The result
// aliases b.
func bytesAsFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// float32AsBytes reinterprets samples as bytes. The result aliases s.
func float32AsBytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}
