package subtitles_test

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"captioner/internal/services"
	"captioner/internal/subtitles"
)

var timestampPattern = regexp.MustCompile(`^\d{2,}:\d{2}:\d{2},\d{3}$`)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{2.5, "00:00:02,500"},
		{3661.25, "01:01:01,250"},
		{59.9999, "00:00:59,999"},
		{1.0009, "00:00:01,000"},
		{0.001, "00:00:00,001"},
		{86399.999, "23:59:59,999"},
		{360000, "100:00:00,000"},
		{9.3e15, "2583333333333:20:00,000"},
		{1e16, "2777777777777:46:40,000"},
		{1e17, "27777777777777:46:40,000"},
	}
	for _, tt := range tests {
		got, err := subtitles.FormatTimestamp(tt.seconds)
		if err != nil {
			t.Fatalf("FormatTimestamp(%v) returned error: %v", tt.seconds, err)
		}
		if got != tt.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatTimestampMatchesPatternAndTruncates(t *testing.T) {
	for seconds := 0.0; seconds < 7300; seconds += 0.3337 {
		got, err := subtitles.FormatTimestamp(seconds)
		if err != nil {
			t.Fatalf("FormatTimestamp(%v) returned error: %v", seconds, err)
		}
		if !timestampPattern.MatchString(got) {
			t.Fatalf("FormatTimestamp(%v) = %q does not match pattern", seconds, got)
		}
		parsed, err := subtitles.ParseTimestamp(got)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) returned error: %v", got, err)
		}
		if parsed > seconds+1e-6 || seconds-parsed >= 0.001+1e-6 {
			t.Fatalf("FormatTimestamp(%v) = %q is not a truncation", seconds, got)
		}
	}
}

func TestFormatTimestampSubMillisecondStepOnlyChangesMillis(t *testing.T) {
	for i := 0; i < 5000; i++ {
		seconds := float64(i*37) + float64((i*7919)%9990)/10000
		before, err := subtitles.FormatTimestamp(seconds)
		if err != nil {
			t.Fatalf("FormatTimestamp(%v) returned error: %v", seconds, err)
		}
		after, err := subtitles.FormatTimestamp(seconds + 0.0009)
		if err != nil {
			t.Fatalf("FormatTimestamp(%v) returned error: %v", seconds+0.0009, err)
		}
		beforeClock, beforeMillis, _ := strings.Cut(before, ",")
		afterClock, afterMillis, _ := strings.Cut(after, ",")
		if beforeClock != afterClock {
			t.Fatalf("clock changed within one second: %q -> %q", before, after)
		}
		a, _ := strconv.Atoi(beforeMillis)
		b, _ := strconv.Atoi(afterMillis)
		if diff := b - a; diff < 0 || diff > 1 {
			t.Fatalf("millis moved by %d: %q -> %q", diff, before, after)
		}
	}
}

func TestFormatTimestampRejectsInvalidInput(t *testing.T) {
	for _, value := range []float64{-0.001, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := subtitles.FormatTimestamp(value)
		if err == nil {
			t.Fatalf("expected error for %v", value)
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", value, err)
		}
	}
}

func TestParseTimestampRejectsMalformed(t *testing.T) {
	for _, value := range []string{"", "1:02:03,000", "00:61:00,000", "00:00:00,0", "00:00:00", "aa:bb:cc,ddd"} {
		if _, err := subtitles.ParseTimestamp(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}
