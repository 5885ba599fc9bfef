package sample

import (
	"testing"
	"time"
)

func TestRoundSecond_HalfToEven(t *testing.T) {
	cases := []struct {
		ms   int64
		want int64
	}{
		{ms: 1_000, want: 1},
		{ms: 1_499, want: 1},
		{ms: 1_500, want: 2},
		{ms: 2_500, want: 2},
		{ms: 2_501, want: 3},
		{ms: 3_500, want: 4},
	}
	for _, tc := range cases {
		got := RoundSecond(FromEpochMillis(tc.ms))
		if got.Unix() != tc.want {
			t.Fatalf("RoundSecond(%dms)=%d want %d", tc.ms, got.Unix(), tc.want)
		}
	}
}

func TestParseTime_Layouts(t *testing.T) {
	want := time.Date(2025, 7, 26, 13, 15, 0, 0, time.UTC)
	for _, s := range []string{
		"2025-07-26T13:15:00",
		"2025-07-26 13:15:00",
		"2025-07-26 13:15:00.000",
		"2025-07-26T13:15:00Z",
		"2025-07-26T15:15:00+02:00",
	} {
		got, err := ParseTime(s)
		if err != nil {
			t.Fatalf("ParseTime(%q) error: %v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTime(%q)=%s want %s", s, got, want)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRawRecord_HasData(t *testing.T) {
	var r RawRecord
	if r.HasData() {
		t.Fatalf("empty record reports data")
	}
	r.Values.Set(STW, 0)
	if !r.HasData() {
		t.Fatalf("record with zero STW must report data")
	}
	if v, ok := r.Values.Get(STW); !ok || v != 0 {
		t.Fatalf("Get(STW)=%v,%v", v, ok)
	}
}

func TestChannel_Names(t *testing.T) {
	if Heading.String() != "heading_deg" {
		t.Fatalf("heading name=%q", Heading.String())
	}
	if !AWA.Angular() || STW.Angular() {
		t.Fatalf("unexpected angular classification")
	}
	if len(AllChannels()) != int(NumChannels) {
		t.Fatalf("AllChannels len=%d", len(AllChannels()))
	}
}
