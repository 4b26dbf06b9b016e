package dynlibutils

import (
	"bytes"
	"reflect"
	"testing"
	"testing/quick"
)

func TestParsePatternBasic(t *testing.T) {
	p := ParsePattern("48 8B 05 ?? ?? ?? ??")
	want := Pattern{
		Bytes: []byte{0x48, 0x8B, 0x05, 0, 0, 0, 0},
		Mask:  []byte{'x', 'x', 'x', '?', '?', '?', '?'},
	}
	if !reflect.DeepEqual(p.Bytes, want.Bytes) || !reflect.DeepEqual(p.Mask, want.Mask) {
		t.Errorf("ParsePattern = %+v, want %+v", p, want)
	}
}

func TestParsePatternSingleWildcard(t *testing.T) {
	p := ParsePattern("41 ? 43")
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
	if p.Mask[1] != maskWildcard {
		t.Errorf("single '?' should be a wildcard token")
	}
}

func TestParsePatternTrailingLoneHexDigit(t *testing.T) {
	p := ParsePattern("41 42 4")
	if p.Len() != 2 {
		t.Errorf("trailing lone hex digit should be discarded, got Len()=%d", p.Len())
	}
}

func TestParsePatternInvalidCharSkipsForward(t *testing.T) {
	p := ParsePattern("41 @@ 42")
	if p.Len() != 2 {
		t.Errorf("invalid chars should be skipped without failing, got Len()=%d", p.Len())
	}
	if p.Bytes[0] != 0x41 || p.Bytes[1] != 0x42 {
		t.Errorf("unexpected parsed bytes: %x", p.Bytes)
	}
}

func TestPatternMatchAt(t *testing.T) {
	p := ParsePattern("48 8B ?? 89")
	data := []byte{0x48, 0x8B, 0xFF, 0x89, 0x00}
	if !p.MatchAt(data) {
		t.Error("expected MatchAt to succeed with wildcard byte")
	}
	data[3] = 0x90
	if p.MatchAt(data) {
		t.Error("expected MatchAt to fail on mismatched strict byte")
	}
}

func TestPatternStringRoundTrip(t *testing.T) {
	original := "48 8B 05 ?? ?? ?? ??"
	p := ParsePattern(original)
	rendered := p.String()
	p2 := ParsePattern(rendered)
	if !reflect.DeepEqual(p.Bytes, p2.Bytes) || !reflect.DeepEqual(p.Mask, p2.Mask) {
		t.Errorf("round trip mismatch: %q -> %q -> %+v", original, rendered, p2)
	}
}

func TestPatternRoundTripProperty(t *testing.T) {
	f := func(raw []byte) bool {
		mask := make([]byte, len(raw))
		for i := range mask {
			mask[i] = maskMatch
		}
		p := Pattern{Bytes: raw, Mask: mask}
		p2 := ParsePattern(p.String())
		return bytes.Equal(p.Bytes, p2.Bytes) && bytes.Equal(p.Mask, p2.Mask)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
