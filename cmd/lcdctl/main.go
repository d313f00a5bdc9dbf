// Command lcdctl drives a Thermalright USB LCD panel: it opens the
// device, attempts the best-effort startup handshake, then repeatedly
// composes a background frame and uploads it until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/the-black-eagle/Thermalright-usblcd/background"
	"github.com/the-black-eagle/Thermalright-usblcd/metrics"
	"github.com/the-black-eagle/Thermalright-usblcd/panel"
	"github.com/the-black-eagle/Thermalright-usblcd/usb"
)

var (
	vendorID    = flag.Uint("vid", 0x0402, "USB vendor ID")
	productID   = flag.Uint("pid", 0x3922, "USB product ID")
	imagePath   = flag.String("image", "", "Path to a static background image")
	videoPath   = flag.String("video", "", "Path to a background video")
	fps         = flag.Duration("interval", time.Second/25, "Frame pump interval")
	maxFailures = flag.Int("max-failures", 5, "Consecutive upload failures tolerated before giving up")
)

func main() {
	flag.Parse()

	dev, err := usb.Open(uint16(*vendorID), uint16(*productID))
	if err != nil {
		log.Fatalf("lcdctl: open device: %v", err)
	}
	defer dev.Close()
	log.Printf("lcdctl: opened %v", dev)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if !panel.Handshake(ctx, dev) {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("lcdctl: %v; proceeding anyway", usb.ErrHandshakeTimeout)
		} else {
			log.Printf("lcdctl: startup handshake did not settle; proceeding anyway")
		}
	}
	cancel()

	poller := metrics.NewPoller()
	poller.Start()
	defer poller.Stop()
	log.Printf("lcdctl: metrics detected: %v", poller.GetAvailableMetrics())

	comp := background.NewCompositor()
	defer comp.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*fps)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-sigCh:
			log.Printf("lcdctl: shutting down")
			return
		case <-ticker.C:
			frame := comp.GetBackgroundBytes(*videoPath, *imagePath)
			if err := comp.LastError(); err != nil {
				log.Printf("lcdctl: background source error (using fallback): %v", err)
			}
			if err := retryUpload(dev, frame, *maxFailures); err != nil {
				consecutiveFailures++
				log.Printf("lcdctl: frame upload failed (%d/%d): %v (%v)",
					consecutiveFailures, *maxFailures, err, panel.ClassifyUploadError(err))
				if consecutiveFailures >= *maxFailures {
					log.Fatalf("lcdctl: %v: LCD not responding after %d consecutive failures",
						usb.ErrTransferFailed, consecutiveFailures)
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}

// retryUpload attempts a single frame upload, resetting the transport and
// retrying once on failure before giving up for this tick. Sustained
// failure across ticks is the caller's concern (spec §7's user-visible
// "LCD not responding" behavior).
func retryUpload(dev *usb.Device, frame []byte, maxAttempts int) error {
	var err error
	for attempt := 0; attempt < 2 && attempt < maxAttempts; attempt++ {
		if err = panel.UploadFrame(dev, frame); err == nil {
			return nil
		}
		_ = dev.ResetTransport()
	}
	return err
}
