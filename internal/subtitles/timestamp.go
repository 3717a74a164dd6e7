package subtitles

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"captioner/internal/services"
)

// FormatTimestamp renders seconds as an SRT timestamp HH:MM:SS,mmm.
// Milliseconds are truncated. Hours grow past two digits when needed.
func FormatTimestamp(seconds float64) (string, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", services.Wrap(services.ErrValidation, "subtitle-write", "format timestamp", fmt.Sprintf("non-finite time %v", seconds), nil)
	}
	if seconds < 0 {
		return "", services.Wrap(services.ErrValidation, "subtitle-write", "format timestamp", fmt.Sprintf("negative time %v", seconds), nil)
	}
	whole, frac := math.Modf(seconds)
	// 1e-6 absorbs float noise such as 2.5 arriving as 2.4999999999.
	millis := int64(math.Floor(frac*1000 + 1e-6))
	if millis >= 1000 {
		whole++
		millis -= 1000
	}
	if whole < maxExactSeconds {
		total := int64(whole)
		return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, millis), nil
	}
	return formatLargeTimestamp(whole, millis), nil
}

// maxExactSeconds bounds the float64 range where every integer is exact.
const maxExactSeconds = 1 << 53

func formatLargeTimestamp(whole float64, millis int64) string {
	total, _ := big.NewFloat(whole).Int(nil)
	hours, rem := new(big.Int).QuoRem(total, big.NewInt(3600), new(big.Int))
	rest := rem.Int64()
	return fmt.Sprintf("%s:%02d:%02d,%03d", hours.String(), rest/60, rest%60, millis)
}

// ParseTimestamp converts an SRT timestamp back into seconds. A period is
// accepted in place of the comma.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	clock, fraction, ok := strings.Cut(value, ",")
	if !ok || len(fraction) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 || len(hms[1]) != 2 || len(hms[2]) != 2 || len(hms[0]) < 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(fraction)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || secs < 0 || secs > 59 || millis < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}
