// Package usb implements the USB Bulk-Only Transport (BOT) state machine
// used to talk to the panel: SCSI-style commands wrapped in a Command
// Block Wrapper (CBW), an optional data phase, and a Command Status
// Wrapper (CSW), all carried over two bulk endpoints.
//
// The shape follows periph's experimental/host/usbbus package (an opened
// handle wrapping a bulk in/out endpoint pair with Write/Tx methods), but
// targets the maintained github.com/google/gousb instead of the archived
// kylelemons/gousb backend periph used.
package usb

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gousb"
)

const (
	// InterfaceNumber is the BOT interface claimed on the device.
	InterfaceNumber = 0

	bulkInEndpoint  = 0x81
	bulkOutEndpoint = 0x02

	cbwLen       = 31
	cswLen       = 13
	cbwSignature = "USBC"
	cswSignature = "USBS"

	dirDeviceToHost = 0x80
	dirHostToDevice = 0x00

	cbwTimeout  = time.Second
	cswTimeout  = time.Second
	dataTimeout = 2 * time.Second
)

// Status is the single status byte carried by a CSW.
type Status byte

// CSW status values, per spec §3.
const (
	StatusOK          Status = 0
	StatusFailed      Status = 1
	StatusPhaseError  Status = 2
)

// ScsiResult is the outcome of one SCSI round-trip over BOT.
type ScsiResult struct {
	OK     bool
	Status Status
	Data   []byte
}

// ClassifyStatus maps a non-OK CSW status to the caller-facing sentinel
// from the §7 error taxonomy. SendSCSI itself never returns these — per
// spec it reports failure through ScsiResult.OK/Status and never throws
// — but diagnostics layers (logging, the host UI) want a named reason
// rather than a bare status byte, the same way DeviceReady already
// distinguishes StatusFailed from StatusPhaseError internally.
func ClassifyStatus(s Status) error {
	switch s {
	case StatusFailed:
		return ErrDeviceNotReady
	case StatusPhaseError:
		return ErrProtocolError
	default:
		return ErrTransferFailed
	}
}

// reader/writer are the minimal surfaces this package needs from a bulk
// endpoint, so tests can substitute fakes without pulling in libusb.
type bulkWriter interface {
	WriteContext(ctx context.Context, b []byte) (int, error)
}

type bulkReader interface {
	ReadContext(ctx context.Context, b []byte) (int, error)
}

// ctrlDevice is the subset of *gousb.Device this package drives directly,
// factored out so tests can substitute a fake and exercise ResetTransport,
// device reset and close without linking libusb.
type ctrlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Reset() error
	Close() error
}

// Device is an open handle to the panel's BOT interface.
//
// Only one Device exists per process; see Open.
type Device struct {
	id ID

	ctx  *gousb.Context
	dev  ctrlDevice
	cfg  *gousb.Config
	intf *gousb.Interface

	in  bulkReader
	out bulkWriter

	tag uint32 // atomic, monotonically increasing

	// closeOnce guards against double-closing the underlying handles.
	closeOnce sync.Once
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return d.id.String()
}

var (
	singletonMu sync.Mutex
	current     *Device
)

// Open opens the panel at vid:pid.
//
// It always attempts to auto-detach any kernel driver, claim interface 0
// (no release is issued before the claim), and reset the device. Opening
// is idempotent:
// if a Device is already open process-wide, it is closed first.
func Open(vid, pid uint16) (*Device, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if current != nil {
		_ = current.closeLocked()
		current = nil
	}

	d, err := openGousb(vid, pid)
	if err != nil {
		return nil, err
	}
	current = d
	return d, nil
}

func openGousb(vid, pid uint16) (*Device, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	if err != nil || len(devs) == 0 {
		ctx.Close()
		return nil, ErrNoDevice
	}
	// Keep the first match, release the rest: the panel never enumerates
	// more than once, but OpenDevices returns every match.
	dev := devs[0]
	for _, extra := range devs[1:] {
		extra.Close()
	}

	if err := dev.SetAutoDetach(true); err != nil {
		// Not fatal: kernel driver auto-detach isn't available on every
		// platform (e.g. it's a no-op on Windows/macOS backends).
		log.Printf("usb: auto-detach kernel driver: %v", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, ErrClaimFailed
	}
	intf, err := cfg.Interface(InterfaceNumber, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, ErrClaimFailed
	}
	inEp, err := intf.InEndpoint(bulkInEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, ErrClaimFailed
	}
	outEp, err := intf.OutEndpoint(bulkOutEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, ErrClaimFailed
	}

	d := &Device{
		id:   ID{Vendor: vid, Product: pid},
		ctx:  ctx,
		dev:  dev,
		cfg:  cfg,
		intf: intf,
		in:   inEp,
		out:  outEp,
	}
	if err := d.ResetTransport(); err != nil {
		log.Printf("usb: initial reset_transport: %v", err)
	}
	if err := d.resetDevice(); err != nil {
		log.Printf("usb: initial device reset: %v", err)
	}
	return d, nil
}

func (d *Device) resetDevice() error {
	if err := d.dev.Reset(); err != nil {
		return ErrClaimFailed
	}
	return nil
}

// Close releases the interface and closes the handle. It is safe to call
// repeatedly.
func (d *Device) Close() error {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	err := d.closeLocked()
	if current == d {
		current = nil
	}
	return err
}

func (d *Device) closeLocked() error {
	var err error
	d.closeOnce.Do(func() {
		if d.intf != nil {
			d.intf.Close()
		}
		if d.cfg != nil {
			d.cfg.Close()
		}
		if d.dev != nil {
			err = d.dev.Close()
		}
		if d.ctx != nil {
			d.ctx.Close()
		}
	})
	return err
}

// nextTag returns the next auto-assigned CBW tag.
func (d *Device) nextTag() uint32 {
	return atomic.AddUint32(&d.tag, 1)
}

// SendSCSI performs one CBW -> [data phase] -> CSW round-trip.
//
// cdb must be 6 to 16 bytes. Exactly one of dataOut/dataInLen should be
// used per the spec's state machine: if dataInLen > 0, the data phase
// reads that many bytes from the device; otherwise, if dataOut is
// non-empty, it is written to the device. If tag is 0, the next value from
// the device's tag counter is used.
//
// SendSCSI never returns an error for a failed SCSI command: failures are
// reported via ScsiResult.OK == false. The returned error is only non-nil
// for caller misuse (an invalid CDB length).
func (d *Device) SendSCSI(cdb []byte, dataOut []byte, dataInLen int, tag uint32) (ScsiResult, error) {
	if len(cdb) < 6 || len(cdb) > 16 {
		return ScsiResult{}, fmt.Errorf("usb: cdb must be 6-16 bytes, got %d", len(cdb))
	}
	if tag == 0 {
		tag = d.nextTag()
	}

	length := uint32(dataInLen)
	flags := byte(dirHostToDevice)
	if dataInLen > 0 {
		flags = dirDeviceToHost
	} else {
		length = uint32(len(dataOut))
	}

	cbw := buildCBW(tag, length, flags, cdb)
	ctxCBW, cancel := context.WithTimeout(context.Background(), cbwTimeout)
	defer cancel()
	if _, err := d.out.WriteContext(ctxCBW, cbw); err != nil {
		return ScsiResult{OK: false, Status: StatusPhaseError}, nil
	}

	var data []byte
	if dataInLen > 0 {
		buf := make([]byte, dataInLen)
		ctxData, cancel := context.WithTimeout(context.Background(), dataTimeout)
		n, err := d.in.ReadContext(ctxData, buf)
		cancel()
		if err != nil {
			return ScsiResult{OK: false, Status: StatusPhaseError}, nil
		}
		data = buf[:n]
	} else if len(dataOut) > 0 {
		ctxData, cancel := context.WithTimeout(context.Background(), dataTimeout)
		_, err := d.out.WriteContext(ctxData, dataOut)
		cancel()
		if err != nil {
			return ScsiResult{OK: false, Status: StatusPhaseError}, nil
		}
	}

	cswBuf := make([]byte, cswLen)
	ctxCSW, cancel := context.WithTimeout(context.Background(), cswTimeout)
	n, err := d.in.ReadContext(ctxCSW, cswBuf)
	cancel()
	if err != nil || n < cswLen {
		return ScsiResult{OK: false, Status: StatusPhaseError}, nil
	}
	if string(cswBuf[0:4]) != cswSignature {
		return ScsiResult{OK: false, Status: StatusPhaseError}, nil
	}
	cswTag := binary.LittleEndian.Uint32(cswBuf[4:8])
	if cswTag != tag {
		// Spec §9 Open Questions: the source never verified this; a correct
		// implementation should, treating mismatch as a phase error.
		return ScsiResult{OK: false, Status: StatusPhaseError}, nil
	}
	status := Status(cswBuf[12])
	return ScsiResult{OK: status == StatusOK, Status: status, Data: data}, nil
}

func buildCBW(tag, length uint32, flags byte, cdb []byte) []byte {
	b := make([]byte, cbwLen)
	copy(b[0:4], cbwSignature)
	binary.LittleEndian.PutUint32(b[4:8], tag)
	binary.LittleEndian.PutUint32(b[8:12], length)
	b[12] = flags
	b[13] = 0 // LUN
	b[14] = byte(len(cdb))
	copy(b[15:15+len(cdb)], cdb)
	return b
}

// ResetTransport issues a USB Mass Storage Reset class request and clears
// halt on both bulk endpoints.
func (d *Device) ResetTransport() error {
	if _, err := d.dev.Control(0x21, 0xFF, 0, 0, nil); err != nil {
		return fmt.Errorf("usb: mass storage reset: %w", ErrClaimFailed)
	}
	// CLEAR_FEATURE(ENDPOINT_HALT), standard request, endpoint recipient.
	if _, err := d.dev.Control(0x02, 0x01, 0x0000, bulkOutEndpoint, nil); err != nil {
		log.Printf("usb: clear halt on bulk-out: %v", err)
	}
	if _, err := d.dev.Control(0x02, 0x01, 0x0000, bulkInEndpoint, nil); err != nil {
		log.Printf("usb: clear halt on bulk-in: %v", err)
	}
	return nil
}

// testUnitReadyCDB and requestSenseCDB are the fixed 6-byte CDBs used by
// DeviceReady and the startup handshake.
var (
	testUnitReadyCDB = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	requestSenseCDB  = []byte{0x03, 0x00, 0x00, 0x00, 0x12, 0x00}
)

// DeviceReady sends TEST UNIT READY. On CHECK CONDITION it issues REQUEST
// SENSE and resets the transport before reporting not-ready; same on
// PHASE ERROR.
func (d *Device) DeviceReady() bool {
	res, err := d.SendSCSI(testUnitReadyCDB, nil, 0, 0)
	if err != nil {
		return false
	}
	switch res.Status {
	case StatusOK:
		return true
	case StatusFailed:
		_, _ = d.SendSCSI(requestSenseCDB, nil, 18, 0)
		_ = d.ResetTransport()
		return false
	default: // StatusPhaseError
		_ = d.ResetTransport()
		return false
	}
}
