package panel

import "testing"

func solidFrame(r, g, b byte) []byte {
	buf := make([]byte, FrameBytes)
	for i := 0; i < FrameBytes; i += 3 {
		buf[i], buf[i+1], buf[i+2] = r, g, b
	}
	return buf
}

func TestPack_chunkSizes(t *testing.T) {
	chunks, err := Pack(solidFrame(0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := [3]int{57600, 57600, 38400}
	for i, c := range chunks {
		if len(c) != want[i] {
			t.Fatalf("chunk %d: got %d bytes, want %d", i, len(c), want[i])
		}
	}
	total := len(chunks[0]) + len(chunks[1]) + len(chunks[2])
	if total != 153600 {
		t.Fatalf("total packed size = %d, want 153600", total)
	}
}

func TestPack_solidRed(t *testing.T) {
	chunks, err := Pack(solidFrame(255, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	for ci, c := range chunks {
		for i := 0; i+1 < len(c); i += 2 {
			if c[i] != 0x00 || c[i+1] != 0xF8 {
				t.Fatalf("chunk %d offset %d: got %02x %02x, want 00 f8", ci, i, c[i], c[i+1])
			}
		}
	}
}

func TestPack_rejectsWrongSize(t *testing.T) {
	if _, err := Pack(make([]byte, FrameBytes-1)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestPack_topLeftPixelLandsAtBottomOfColumnZero(t *testing.T) {
	buf := make([]byte, FrameBytes)
	// row 0, col 0 = (8, 16, 24); every other pixel is black.
	buf[0], buf[1], buf[2] = 8, 16, 24

	chunks, err := Pack(buf)
	if err != nil {
		t.Fatal(err)
	}
	// Column 0 is emitted bottom-to-top within chunk 0, so row 0 is the
	// *last* of the 240 pixels in that column: byte offset (240-1)*2.
	offset := (Height - 1) * 2
	word := rgb565(8, 16, 24)
	wantLo, wantHi := byte(word), byte(word>>8)
	if chunks[0][offset] != wantLo || chunks[0][offset+1] != wantHi {
		t.Fatalf("got %02x %02x at offset %d, want %02x %02x", chunks[0][offset], chunks[0][offset+1], offset, wantLo, wantHi)
	}
	// Every other pixel in that column must be black (0x00 0x00).
	for i := 0; i < offset; i += 2 {
		if chunks[0][i] != 0 || chunks[0][i+1] != 0 {
			t.Fatalf("expected black at offset %d, got %02x %02x", i, chunks[0][i], chunks[0][i+1])
		}
	}
}

func TestPack_deterministic(t *testing.T) {
	buf := solidFrame(12, 34, 56)
	a, err := Pack(buf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Pack(buf)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			t.Fatalf("chunk %d differs between calls", i)
		}
	}
}

func TestPackUnpack_roundTrip(t *testing.T) {
	buf := make([]byte, FrameBytes)
	for i := range buf {
		// Values clamped to what RGB565 can represent exactly so the
		// round-trip is lossless: low 3 (or 2 for green) bits zero.
		buf[i] = byte(i*37) & 0xF8
	}
	chunks, err := Pack(buf)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unpack(chunks)
	if err != nil {
		t.Fatal(err)
	}
	for i := range buf {
		// Green channel keeps 6 bits (mask 0xFC); every third byte
		// starting at offset 1 is green.
		mask := byte(0xF8)
		if i%3 == 1 {
			mask = 0xFC
		}
		if back[i] != buf[i]&mask {
			t.Fatalf("byte %d: got %02x want %02x", i, back[i], buf[i]&mask)
		}
	}
}

func TestUnpack_rejectsWrongChunkSizes(t *testing.T) {
	var chunks [3][]byte
	chunks[0] = make([]byte, 10)
	if _, err := Unpack(chunks); err == nil {
		t.Fatal("expected error")
	}
}
