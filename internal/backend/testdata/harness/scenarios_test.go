package regs

import (
	"errors"
	"math/bits"
	"testing"

	"lukechampine.com/uint128"

	"bitgen/bitfield"
)

// status is 0xFFABC9F5: mode=5, ready, level=-1, kind=9, code=0xABC and
// the 0xFF padding byte.
const status = 0xFFABC9F5

func TestStatusLittleEndianIngest(t *testing.T) {
	s := StatusFromBits(bits.ReverseBytes32(status))
	if got := s.IntoBits(); got != status {
		t.Fatalf("expected %#x, got %#x", uint32(status), got)
	}
	if s.Mode() != 5 || !s.Ready() || s.Level() != -1 || s.Kind() != Kind(9) {
		t.Fatalf("unexpected fields %s", s)
	}
	if s.note != "idle" {
		t.Fatalf("expected ignored field default, got %q", s.note)
	}
	if want := "Status{_reserved: 255, code: 2748, kind: 9, level: 7, ready: 1, mode: 5}"; s.String() != want {
		t.Fatalf("expected %q, got %q", want, s.String())
	}
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []uint32{0xFF000000, 0xFF123456, status, 0xFFFFFFFF} {
		if got := StatusFromBits(bits.ReverseBytes32(v)).IntoBits(); got != v {
			t.Fatalf("Status: round trip of %#x gave %#x", v, got)
		}
	}
	for _, v := range []uint16{0, 0x5555, 0xAAAA, 0xFFFF, 0xFFEF} {
		if got := FlagsFromBits(v).IntoBits(); got != v {
			t.Fatalf("Flags: round trip of %#x gave %#x", v, got)
		}
	}
	for _, v := range []uint64{0, 0x1122334455667788, 0x0123456789ABCDEF, ^uint64(0)} {
		if got := MixedFromBits(v).IntoBits(); got != v {
			t.Fatalf("Mixed: round trip of %#x gave %#x", v, got)
		}
	}
	for _, v := range []uint128.Uint128{
		uint128.Zero,
		uint128.New(0x0123456789ABCDEF, 0x000FFFFFDEADBEEF),
		uint128.New(^uint64(0), 0x000FFFFFFFFFFFFF),
	} {
		if got := WideFromBits(v.ReverseBytes()).IntoBits(); got != v {
			t.Fatalf("Wide: round trip of %v gave %v", v, got)
		}
	}
}

func TestDefaultsRespected(t *testing.T) {
	if got := NewStatus().IntoBits(); got != 0xFF000003 {
		t.Fatalf("expected defaults 0xff000003, got %#x", got)
	}
	if got := NewStatusWithoutDefaults().IntoBits(); got != 0xFF000000 {
		t.Fatalf("expected padding to keep its default, got %#x", got)
	}
	s := StatusFromBitsWithDefaults(bits.ReverseBytes32(0x00ABC9F5))
	if got := s.IntoBits(); got != 0xFFABC9F3 {
		t.Fatalf("expected mode and padding defaults over the input, got %#x", got)
	}
	s.SetMode(9)
	s.Reset()
	if got := s.IntoBits(); got != 0xFF000003 || s.note != "idle" {
		t.Fatalf("expected Reset to restore defaults, got %#x %q", got, s.note)
	}
	if got := NewLsb().IntoBits(); got != 0x78563412 {
		t.Fatalf("expected lsb-first 0x78563412, got %#x", got)
	}
	if got := NewMsb().IntoBits(); got != 0x12345678 {
		t.Fatalf("expected msb-first 0x12345678, got %#x", got)
	}
}

func TestTruncation(t *testing.T) {
	s := NewStatus()
	s.SetMode(0x1F)
	if got := s.Mode(); got != 0xF {
		t.Fatalf("expected mode 0xf, got %#x", got)
	}
	for _, tc := range []struct {
		in, want int8
	}{
		{in: 3, want: 3},
		{in: 4, want: -4},
		{in: -5, want: 3},
		{in: -1, want: -1},
	} {
		s.SetLevel(tc.in)
		if got := s.Level(); got != tc.want {
			t.Fatalf("expected level %d after writing %d, got %d", tc.want, tc.in, got)
		}
	}
	s.SetKind(Kind(0x1A))
	if got := s.Kind(); got != Kind(0xA) {
		t.Fatalf("expected kind 0xa, got %#x", got)
	}
}

func TestCheckedRejection(t *testing.T) {
	s := StatusFromBits(bits.ReverseBytes32(status))
	for name, set := range map[string]func() error{
		"level": func() error { return s.CheckedSetLevel(-1) },
		"mode":  func() error { return s.CheckedSetMode(0x10) },
		"kind":  func() error { return s.CheckedSetKind(Kind(0x10)) },
		"code":  func() error { return s.CheckedSetCode(0x1000) },
	} {
		if err := set(); !errors.Is(err, bitfield.ErrValueTooLarge) {
			t.Fatalf("%s: expected ErrValueTooLarge, got %v", name, err)
		}
		if got := s.IntoBits(); got != status {
			t.Fatalf("%s: rejected write changed storage to %#x", name, got)
		}
	}
	if err := s.CheckedSetLevel(3); err != nil {
		t.Fatalf("CheckedSetLevel(3): %v", err)
	}
	if got := s.Level(); got != 3 {
		t.Fatalf("expected level 3, got %d", got)
	}

	w := NewWide()
	if err := w.CheckedSetHi(-1); !errors.Is(err, bitfield.ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestReadOnlyScenarios(t *testing.T) {
	f := FlagsFromBits(0xFFFF)
	if f.A() != 0xF || !f.RoBool() || f.B() != 0x7 || f.C() != 0xFF {
		t.Fatalf("unexpected fields %s", f)
	}
	f = FlagsFromBits(0xFFEF)
	if f.RoBool() || f.A() != 0xF || f.B() != 0x7 || f.C() != 0xFF {
		t.Fatalf("expected only roBool cleared, got %s", f)
	}

	m := MixedFromBits(0x1122334455667788)
	if m.Ro1() != 0x88 || m.Rw1() != 0x77 || m.Ro2() != 0x66 || m.Rw2() != 0x55 || m.Large() != 0x11223344 {
		t.Fatalf("unexpected fields %s", m)
	}
}

func TestEndianness(t *testing.T) {
	want := LsbFromBits(0x11223344)
	got := LittleInFromBits(0x44332211)
	if got.A() != want.A() || got.B() != want.B() || got.C() != want.C() || got.D() != want.D() {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if v := got.IntoBits(); v != 0x11223344 {
		t.Fatalf("expected 0x11223344, got %#x", v)
	}

	m := MsbFromBits(0x78563412)
	if m.A() != 0x12 || m.D() != 0x78 {
		t.Fatalf("expected a=0x12 d=0x78, got %s", m)
	}
}

func TestPaddingIsolation(t *testing.T) {
	s := StatusFromBits(bits.ReverseBytes32(status))
	s.ClearBits()
	if got := s.IntoBits(); got != 0xFF000010 {
		t.Fatalf("expected read-only field and padding to survive, got %#x", got)
	}
	s.ClearBitsWithDefaults()
	if got := s.IntoBits(); got != 0xFF000013 {
		t.Fatalf("expected mode default, got %#x", got)
	}
	s.SetBits(0)
	if got := s.IntoBits(); got != 0xFF000010 {
		t.Fatalf("expected SetBits to keep padding, got %#x", got)
	}
}

func TestBitOps(t *testing.T) {
	s := StatusFromBits(bits.ReverseBytes32(status))
	if !s.GetBit(4) || !s.GetBit(24) {
		t.Fatalf("expected read-only and padding bits to read as set")
	}
	if s.GetBit(13) {
		t.Fatalf("expected write-only bit to read false")
	}
	if _, err := s.CheckedGetBit(13); !errors.Is(err, bitfield.ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
	if _, err := s.CheckedGetBit(32); !errors.Is(err, bitfield.ErrIndexOutOfBounds) {
		t.Fatalf("expected ErrIndexOutOfBounds, got %v", err)
	}

	s.SetBit(4, false)
	s.SetBit(24, false)
	s.SetBit(40, true)
	if got := s.IntoBits(); got != status {
		t.Fatalf("expected guarded writes to be ignored, got %#x", got)
	}
	if err := s.CheckedSetBit(24, false); !errors.Is(err, bitfield.ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
	if err := s.CheckedSetBit(12, true); err != nil {
		t.Fatalf("CheckedSetBit(12): %v", err)
	}
	s.SetBit(0, false)
	if got := s.IntoBits(); got != 0xFFABD9F4 {
		t.Fatalf("expected bits 12 and 0 written, got %#x", got)
	}

	w := NewWide()
	if !w.GetBit(64) {
		t.Fatalf("expected bit 64 from the mid default")
	}
	w.SetBit(127, true)
	if w.IntoBits() != NewWide().IntoBits() {
		t.Fatalf("expected padding bit write to be ignored")
	}
	if _, err := w.CheckedGetBit(128); !errors.Is(err, bitfield.ErrIndexOutOfBounds) {
		t.Fatalf("expected ErrIndexOutOfBounds, got %v", err)
	}
}

func TestInvertedGetters(t *testing.T) {
	s := StatusFromBits(bits.ReverseBytes32(status))
	if s.NegMode() != 0xA || s.NegReady() || s.NegLevel() != 0 || s.NegKind() != Kind(6) {
		t.Fatalf("unexpected inverted fields: %#x %t %d %#x", s.NegMode(), s.NegReady(), s.NegLevel(), s.NegKind())
	}
	if got := s.IntoBits(); got != status {
		t.Fatalf("inverted reads must not mutate storage, got %#x", got)
	}
	if got := NewWide().NegMid(); got != 0x21524110 {
		t.Fatalf("expected ^0xdeadbeef, got %#x", got)
	}
}

func TestBinaryEncoding(t *testing.T) {
	s := StatusFromBits(bits.ReverseBytes32(status))
	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if string(data) != "\xFF\xAB\xC9\xF5" {
		t.Fatalf("expected ff ab c9 f5, got % x", data)
	}

	var out Status
	if err := out.UnmarshalBinary([]byte{0xF5, 0xC9, 0xAB, 0xFF}); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got := out.IntoBits(); got != status {
		t.Fatalf("expected %#x, got %#x", uint32(status), got)
	}
	if err := out.UnmarshalBinary([]byte{1, 2}); !errors.Is(err, bitfield.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}

	w := NewWide()
	wide, err := w.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(wide) != 16 || uint128.FromBytesBE(wide) != w.IntoBits() {
		t.Fatalf("expected big-endian encoding of %v, got % x", w.IntoBits(), wide)
	}
}

func TestBuilder(t *testing.T) {
	s := NewStatusBuilder().WithMode(1).WithReady(true).WithCode(0x123).Build()
	if got := s.IntoBits(); got != 0xFF123011 {
		t.Fatalf("expected 0xff123011, got %#x", got)
	}
	if _, err := NewStatusBuilder().CheckedWithCode(0x1000); !errors.Is(err, bitfield.ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
	if got := s.ToBuilder().WithLevel(-1).Build().Level(); got != -1 {
		t.Fatalf("expected level -1, got %d", got)
	}
	if got := NewStatusBuilderWithoutDefaults().Build().IntoBits(); got != 0xFF000000 {
		t.Fatalf("expected only padding set, got %#x", got)
	}
}

func TestWide(t *testing.T) {
	w := NewWide()
	if got := w.Mid(); got != 0xDEADBEEF {
		t.Fatalf("expected mid 0xdeadbeef, got %#x", got)
	}
	w.SetHi(-2)
	if got := w.Hi(); got != -2 {
		t.Fatalf("expected hi -2, got %d", got)
	}
	want := uint128.New(0, 0xFFFFE<<32|0xDEADBEEF)
	if got := w.IntoBits(); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
