package tai64

import (
	"testing"
	"time"
)

func TestFromTAIKnownLabels(t *testing.T) {
	tests := []struct {
		tai  time.Time
		want string
	}{
		{time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC), "@4000000000000000"},
		{time.Date(1970, time.January, 1, 0, 0, 1, 0, time.UTC), "@4000000000000001"},
		{time.Date(1969, time.December, 31, 23, 59, 59, 0, time.UTC), "@3fffffffffffffff"},
	}
	for _, tt := range tests {
		if got := FromTAI(tt.tai).String(); got != tt.want {
			t.Errorf("FromTAI(%v) = %s, want %s", tt.tai, got, tt.want)
		}
	}
}

func TestLabelRoundTrip(t *testing.T) {
	tai := time.Date(2017, time.June, 1, 0, 0, 37, 0, time.UTC)
	label := FromTAI(tai)

	if got := label.TAI(); !got.Equal(tai) {
		t.Errorf("TAI() = %v, want %v", got, tai)
	}

	unpacked, err := Unpack(label.Pack())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked != label {
		t.Errorf("Pack/Unpack round trip = %v, want %v", unpacked, label)
	}

	parsed, err := Parse(label.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != label {
		t.Errorf("String/Parse round trip = %v, want %v", parsed, label)
	}
}

func TestUnpackWrongLength(t *testing.T) {
	if _, err := Unpack(make([]byte, 7)); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := Unpack(make([]byte, 12)); err == nil {
		t.Error("expected error for long buffer")
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "4000000000000000", "@zzzz", "@40"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}
