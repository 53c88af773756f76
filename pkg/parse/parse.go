// Package parse holds the pure text-to-value utilities used by the page
// readers: abbreviated count parsing, hashtag extraction and the fixed link
// patterns posts and locations are identified by.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	tagPattern      = regexp.MustCompile(`#(\w+)`)
	postCodePattern = regexp.MustCompile(`/p/([A-Za-z0-9_-]+)`)
	locationPattern = regexp.MustCompile(`/explore/locations/(\d+)`)
)

// Number parses a human-formatted count like "1,234", "12k", "1.2k", "3m" or
// "3.4m" into an integer. The suffix expansion keeps the decimal digit: the
// "k"/"m" is replaced by two/five zeroes when a decimal point is present and
// by three/six when it is not, then the point itself is dropped.
func Number(text string) (int, error) {
	s := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("parse number: empty input")
	}

	switch {
	case strings.HasSuffix(s, "k"):
		if strings.Contains(s, ".") {
			s = strings.TrimSuffix(s, "k") + "00"
		} else {
			s = strings.TrimSuffix(s, "k") + "000"
		}
	case strings.HasSuffix(s, "m"):
		if strings.Contains(s, ".") {
			s = strings.TrimSuffix(s, "m") + "00000"
		} else {
			s = strings.TrimSuffix(s, "m") + "000000"
		}
	}
	s = strings.ReplaceAll(s, ".", "")

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", text, err)
	}
	return n, nil
}

// Tags returns every #word in text, lower-cased, in order, duplicates kept.
// Empty or absent text yields an empty slice.
func Tags(text string) []string {
	tags := []string{}
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tags = append(tags, strings.ToLower(m[1]))
	}
	return tags
}

// PostCode extracts the post code from a post permalink path like
// "/p/CXyz123/".
func PostCode(href string) (string, bool) {
	m := postCodePattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LocationCode extracts the numeric platform id from a location link like
// "/explore/locations/1234567/downtown/".
func LocationCode(href string) (string, bool) {
	m := locationPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SplitLocationName decomposes a display name into minor and major parts on
// the first comma. A name without a comma is all minor.
func SplitLocationName(name string) (minor, major string) {
	before, after, found := strings.Cut(name, ",")
	if !found {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}
