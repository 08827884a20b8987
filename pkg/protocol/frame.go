// Package protocol implements the binary frame format spoken by serial
// sensor heads.
//
// A frame is:
//
//	[len][seq][payload...][crc_hi][crc_lo][sync]
//
// len counts the whole frame including the trailer. seq is a free-running
// 4-bit counter used to detect dropped frames. The CRC covers len, seq and
// the payload. The trailing sync byte lets a reader joining mid-stream find
// frame boundaries.
package protocol

import "errors"

const (
	FrameMin         = 5
	FrameMax         = 64
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FramePayloadMax  = FrameMax - FrameMin
	FrameSync        = 0x7e
	FrameSeqMask     = 0x0f
)

// ErrPayloadTooLarge is returned when a payload exceeds FramePayloadMax.
var ErrPayloadTooLarge = errors.New("protocol: payload too large")

// EncodeFrame wraps payload into a wire frame with the given sequence number.
func EncodeFrame(seq int, payload []byte) ([]byte, error) {
	if len(payload) > FramePayloadMax {
		return nil, ErrPayloadTooLarge
	}
	msglen := FrameMin + len(payload)
	out := make([]byte, 0, msglen)
	out = append(out, byte(msglen), byte(seq&FrameSeqMask))
	out = append(out, payload...)
	crcHi, crcLo := CRC16CCITT(out)
	out = append(out, crcHi, crcLo, FrameSync)
	return out, nil
}

// CheckFrame scans buf for one complete frame. It returns the frame payload,
// its sequence number and the number of bytes consumed from the front of buf.
// A nil payload with n == 0 means more data is needed; a nil payload with
// n > 0 means n bytes of garbage or a corrupt frame were skipped.
func CheckFrame(buf []byte) (payload []byte, seq int, n int) {
	if len(buf) < FrameMin {
		return nil, 0, 0
	}
	msglen := int(buf[0])
	if msglen < FrameMin || msglen > FrameMax {
		return nil, 0, resync(buf)
	}
	if len(buf) < msglen {
		return nil, 0, 0
	}
	if buf[msglen-1] != FrameSync {
		return nil, 0, resync(buf)
	}
	crcHi, crcLo := CRC16CCITT(buf[:msglen-FrameTrailerSize])
	if buf[msglen-3] != crcHi || buf[msglen-2] != crcLo {
		return nil, 0, resync(buf)
	}
	return buf[FrameHeaderSize : msglen-FrameTrailerSize], int(buf[1] & FrameSeqMask), msglen
}

// resync skips to just past the next sync byte, or drops everything if no
// sync byte is present.
func resync(buf []byte) int {
	for i := 1; i < len(buf); i++ {
		if buf[i] == FrameSync {
			return i + 1
		}
	}
	return len(buf)
}
