package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Split selects how a union span covered by several domains is divided.
type Split string

const (
	// SplitProportional shares each span among the domains active in it by
	// their overlap with the span.
	SplitProportional Split = "proportional"
	// SplitLatest gives every instant to the most recently started session
	// covering it.
	SplitLatest Split = "latest"
)

// ParseSplit parses a split mode name. An empty name means proportional.
func ParseSplit(name string) (Split, error) {
	switch Split(strings.ToLower(strings.TrimSpace(name))) {
	case "", SplitProportional:
		return SplitProportional, nil
	case SplitLatest:
		return SplitLatest, nil
	default:
		return "", fmt.Errorf("unknown split mode: %q", name)
	}
}

// SplitByDomain attributes the union of ivs to domains. The attributed
// times always sum to the union total.
func SplitByDomain(ivs []Interval, mode Split) map[string]int64 {
	usage := make(map[string]int64)
	if len(ivs) == 0 {
		return usage
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for _, span := range Union(sorted) {
		var inSpan []Interval
		for _, iv := range sorted {
			if iv.Start >= span.End {
				break
			}
			if iv.End > span.Start && iv.End > iv.Start {
				inSpan = append(inSpan, iv)
			}
		}

		var part map[string]int64
		if mode == SplitLatest {
			part = splitLatest(span, inSpan)
		} else {
			part = splitProportional(span, inSpan)
		}
		for d, ms := range part {
			usage[d] += ms
		}
	}
	return usage
}

func splitProportional(span Span, ivs []Interval) map[string]int64 {
	overlap := make(map[string]int64)
	for _, iv := range ivs {
		a, b := max(iv.Start, span.Start), min(iv.End, span.End)
		if b > a {
			overlap[iv.Domain] += b - a
		}
	}
	return apportion(span.End-span.Start, overlap)
}

func splitLatest(span Span, ivs []Interval) map[string]int64 {
	points := []int64{span.Start, span.End}
	for _, iv := range ivs {
		if iv.Start > span.Start && iv.Start < span.End {
			points = append(points, iv.Start)
		}
		if iv.End > span.Start && iv.End < span.End {
			points = append(points, iv.End)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	out := make(map[string]int64)
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		if b <= a {
			continue
		}
		// ivs is in start order, so the last cover is the latest start.
		owner := ""
		for _, iv := range ivs {
			if iv.Start <= a && iv.End >= b {
				owner = iv.Domain
			}
		}
		if owner != "" {
			out[owner] += b - a
		}
	}
	return out
}

// apportion divides total among weights using largest remainders so the
// parts sum exactly to total.
func apportion(total int64, weights map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(weights))
	var sum int64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || total <= 0 {
		return out
	}

	type share struct {
		domain string
		frac   float64
	}
	shares := make([]share, 0, len(weights))
	var given int64
	for d, w := range weights {
		exact := float64(total) * float64(w) / float64(sum)
		whole := int64(math.Floor(exact))
		out[d] = whole
		given += whole
		shares = append(shares, share{domain: d, frac: exact - float64(whole)})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].frac != shares[j].frac {
			return shares[i].frac > shares[j].frac
		}
		return shares[i].domain < shares[j].domain
	})

	for i := 0; given < total; i = (i + 1) % len(shares) {
		out[shares[i].domain]++
		given++
	}
	for i := 0; given > total; i = (i + 1) % len(shares) {
		if out[shares[i].domain] > 0 {
			out[shares[i].domain]--
			given--
		}
	}
	return out
}

// DomainUsage is one row of a per-domain breakdown.
type DomainUsage struct {
	Domain  string  `json:"domain"`
	TimeMs  int64   `json:"timeMs"`
	Percent float64 `json:"percent"`
}

// RankDomains orders usage by time, longest first, and fills in each
// domain's share of total.
func RankDomains(usage map[string]int64, total int64) []DomainUsage {
	rows := make([]DomainUsage, 0, len(usage))
	for d, ms := range usage {
		if ms <= 0 {
			continue
		}
		row := DomainUsage{Domain: d, TimeMs: ms}
		if total > 0 {
			row.Percent = math.Round(float64(ms)*1000/float64(total)) / 10
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TimeMs != rows[j].TimeMs {
			return rows[i].TimeMs > rows[j].TimeMs
		}
		return rows[i].Domain < rows[j].Domain
	})
	return rows
}
