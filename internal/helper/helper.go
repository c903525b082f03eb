package helper

import (
	"strings"
	"time"
)

// NormTF приводит таймфрейм к биржевой форме: "1H" -> "1h", "60m" -> "1h".
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "60m", "1h":
		return "1h"
	case "120m", "2h":
		return "2h"
	case "240m", "4h":
		return "4h"
	default:
		return s
	}
}

// TFDuration — длительность таймфрейма; 0 для нераспознанного.
func TFDuration(tf string) time.Duration {
	tf = NormTF(tf)
	if len(tf) < 2 {
		return 0
	}
	n := 0
	for _, c := range tf[:len(tf)-1] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	}
	return 0
}

// BarSlot — начало бара, в который попадает t.
func BarSlot(t time.Time, tf string) time.Time {
	d := TFDuration(tf)
	if d <= 0 {
		return t
	}
	sec := t.Unix()
	step := int64(d / time.Second)
	sec -= sec % step
	return time.Unix(sec, 0).In(t.Location())
}
