package panel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/the-black-eagle/Thermalright-usblcd/usb"
)

// transport is the subset of usb.Device the protocol layer needs. It lets
// tests substitute a fake transport without opening a real device.
type transport interface {
	SendSCSI(cdb []byte, dataOut []byte, dataInLen int, tag uint32) (usb.ScsiResult, error)
	ResetTransport() error
}

const vendorOpcode = 0xF5

// buildChunkCDB builds the 16-byte vendor CDB for uploading chunk index i
// of length n, per spec §4.3.
func buildChunkCDB(index int, n int) []byte {
	cdb := make([]byte, 16)
	cdb[0] = vendorOpcode
	cdb[1] = 0x01
	cdb[2] = 0x01
	cdb[3] = byte(index)
	binary.LittleEndian.PutUint32(cdb[12:16], uint32(n))
	return cdb
}

// UploadFrame packs rgb into the three column-interleaved chunks and
// uploads them in strict index order 0, 1, 2 on the same endpoint pair.
// If any chunk's CSW isn't OK, the whole frame fails; the caller decides
// whether to retry or reopen the transport.
func UploadFrame(t transport, rgb []byte) error {
	chunks, err := Pack(rgb)
	if err != nil {
		return err
	}
	for i, chunk := range chunks {
		cdb := buildChunkCDB(i, len(chunk))
		res, err := t.SendSCSI(cdb, chunk, 0, 0)
		if err != nil {
			return err
		}
		if !res.OK {
			return &uploadError{chunk: i, status: res.Status}
		}
	}
	return nil
}

type uploadError struct {
	chunk  int
	status usb.Status
}

func (e *uploadError) Error() string {
	return fmt.Sprintf("panel: frame upload failed on chunk %d (status %d)", e.chunk, e.status)
}

// ClassifyUploadError maps a UploadFrame failure to the §7 error taxonomy
// sentinel its CSW status corresponds to, for callers that want a named
// reason to log rather than the bare error string (spec §6's "LCD not
// responding" host behavior). err must have come from UploadFrame; any
// other error (or nil) classifies as ErrTransferFailed.
func ClassifyUploadError(err error) error {
	var ue *uploadError
	if errors.As(err, &ue) {
		return usb.ClassifyStatus(ue.status)
	}
	return usb.ErrTransferFailed
}

// handshakeTag is the fixed tag captured from a vendor-software trace and
// reproduced verbatim, per spec §4.3.
const handshakeTag = 0x628BF560

var (
	modeSense6CDB  = []byte{0x1A, 0x00, 0x00, 0x00, 0xC0, 0x00}
	inquiryCDB     = []byte{0x12, 0x00, 0x00, 0x00, 0x24, 0x00}
	apixProbeCDB   = []byte{0xF5, 0x41, 0x50, 0x49, 0x58, 0xB3, 0x0C, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	fullReadCDB    = []byte{0xF5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	testUnitReady6 = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	requestSense6  = []byte{0x03, 0x00, 0x00, 0x00, 0x12, 0x00}
)

const handshakeDeadline = 10 * time.Second
const fullPayloadLen = 57627

// Handshake is a best-effort attempt to bypass the panel's ~60s boot
// animation by replaying a capture from the vendor software. It is
// advisory: its failure never prevents frame uploads once the device's
// own boot animation ends (spec §4.3, §7). The whole attempt is bounded by
// a single 10s wall-clock deadline.
func Handshake(ctx context.Context, t transport) bool {
	deadline := time.Now().Add(handshakeDeadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if !preconditionLoop(ctx, t, deadline) {
		return false
	}
	return probeAndEcho(t)
}

// preconditionLoop repeatedly issues TEST UNIT READY (and REQUEST SENSE on
// CHECK CONDITION) and MODE SENSE(6), exiting as soon as either succeeds.
func preconditionLoop(ctx context.Context, t transport, deadline time.Time) bool {
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		tur, err := t.SendSCSI(testUnitReady6, nil, 0, 0)
		if err == nil && tur.OK {
			return true
		}
		if err == nil && tur.Status == usb.StatusFailed {
			sense, err := t.SendSCSI(requestSense6, nil, 18, 0)
			if err != nil || len(sense.Data) == 0 {
				if err := t.ResetTransport(); err != nil {
					log.Printf("panel: handshake reset_transport: %v", err)
				}
			}
		}

		ms, err := t.SendSCSI(modeSense6CDB, nil, 0, 0)
		if err == nil && ms.OK {
			return true
		}

		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// probeAndEcho runs the fixed-tag INQUIRY / APIX probe / full read / echo
// write sequence. Any failed or empty step fails the whole handshake.
func probeAndEcho(t transport) bool {
	inq, err := t.SendSCSI(inquiryCDB, nil, 36, handshakeTag)
	if err != nil || !inq.OK || len(inq.Data) == 0 {
		return false
	}

	apix, err := t.SendSCSI(apixProbeCDB, nil, 12, handshakeTag)
	if err != nil || !apix.OK || len(apix.Data) == 0 {
		return false
	}

	full, err := t.SendSCSI(fullReadCDB, nil, fullPayloadLen, handshakeTag)
	if err != nil || !full.OK || len(full.Data) == 0 {
		return false
	}

	echo, err := t.SendSCSI(fullReadCDB, full.Data, 0, handshakeTag)
	if err != nil || !echo.OK {
		return false
	}
	return true
}
