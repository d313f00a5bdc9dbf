package usb

import (
	"errors"
	"fmt"
)

// ID identifies a USB peripheral by vendor and product id.
type ID struct {
	Vendor  uint16
	Product uint16
}

// String renders the id the way lsusb does, e.g. "0402:3922".
func (i ID) String() string {
	return fmt.Sprintf("%04x:%04x", i.Vendor, i.Product)
}

// Error taxonomy (spec §7). Each sentinel is returned verbatim so callers
// can use errors.Is; none of them carry dynamic text, so they are safe to
// compare directly too.
var (
	// ErrNoDevice means USB enumeration found no matching VID/PID.
	ErrNoDevice = errors.New("usb: no device found for this vendor/product id")
	// ErrClaimFailed means the interface claim or device reset failed.
	ErrClaimFailed = errors.New("usb: failed to claim interface")
	// ErrTransferFailed means a bulk transfer returned an OS error or a
	// short transfer.
	ErrTransferFailed = errors.New("usb: bulk transfer failed")
	// ErrProtocolError means the CSW signature or tag didn't match.
	ErrProtocolError = errors.New("usb: command status wrapper mismatch")
	// ErrDeviceNotReady means TEST UNIT READY reported CHECK CONDITION or
	// PHASE ERROR.
	ErrDeviceNotReady = errors.New("usb: device not ready")
	// ErrHandshakeTimeout means the startup handshake's 10s deadline
	// elapsed before it settled.
	ErrHandshakeTimeout = errors.New("usb: startup handshake timed out")
)
