package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// PubIndividualIDKind tells which entity an individual id sent to PUB identifies.
type PubIndividualIDKind string

const (
	// PubIDPrenote identifies a PUB EFT account ("E" prefix).
	PubIDPrenote PubIndividualIDKind = "E"
	// PubIDPayment identifies a payment ("P" prefix).
	PubIDPayment PubIndividualIDKind = "P"
)

var (
	prenoteIDPattern  = regexp.MustCompile(`^E([1-9][0-9]*)$`)
	paymentIDPattern  = regexp.MustCompile(`^P([1-9][0-9]*)$`)
	embeddedIDPattern = regexp.MustCompile(`\b([EP])([1-9][0-9]*)\b`)
)

// PubIndividualID is a parsed "E<digits>" or "P<digits>" id.
type PubIndividualID struct {
	Kind  PubIndividualIDKind
	Value int64
}

func (p PubIndividualID) String() string {
	return string(p.Kind) + strconv.FormatInt(p.Value, 10)
}

// ParsePrenoteIndividualID parses "E<digits>". Malformed input returns false.
func ParsePrenoteIndividualID(s string) (int64, bool) {
	return parseWith(prenoteIDPattern, s)
}

// ParsePaymentIndividualID parses "P<digits>". Malformed input returns false.
func ParsePaymentIndividualID(s string) (int64, bool) {
	return parseWith(paymentIDPattern, s)
}

// ParsePubIndividualID parses either form.
func ParsePubIndividualID(s string) (PubIndividualID, bool) {
	if value, ok := ParsePrenoteIndividualID(s); ok {
		return PubIndividualID{Kind: PubIDPrenote, Value: value}, true
	}
	if value, ok := ParsePaymentIndividualID(s); ok {
		return PubIndividualID{Kind: PubIDPayment, Value: value}, true
	}
	return PubIndividualID{}, false
}

// FindPubIndividualIDs extracts every well-formed id embedded in free text, such as a
// return file's addenda, in order of appearance.
func FindPubIndividualIDs(text string) []PubIndividualID {
	var ids []PubIndividualID
	for _, match := range embeddedIDPattern.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, PubIndividualID{Kind: PubIndividualIDKind(match[1]), Value: value})
	}
	return ids
}

func parseWith(pattern *regexp.Regexp, s string) (int64, bool) {
	match := pattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
