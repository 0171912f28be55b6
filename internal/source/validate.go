package source

// validJPEG performs a cheap sanity check on depacketized RTP payload
// before handing it to image.Decode, adapted from the teacher's
// internal/utils.IsValidJPEG (SOI/EOI marker check) so a partial or
// corrupt RTP reassembly is skipped rather than logged as a decode error.
func validJPEG(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	if data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	if data[len(data)-2] != 0xFF || data[len(data)-1] != 0xD9 {
		return false
	}
	return true
}
