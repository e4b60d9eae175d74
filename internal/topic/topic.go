// Package topic owns the naming of agency topics and the membership of
// tablet push tokens in them.
package topic

import (
	"fmt"
	"strconv"
	"strings"
)

// Prefix is the only prefix used for agency topics.
const Prefix = "agency_"

// Name returns the topic of an agency.
func Name(agencyID int) string {
	return Prefix + strconv.Itoa(agencyID)
}

// ParseName returns the agency ID encoded in a topic name.
func ParseName(name string) (int, error) {
	raw, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return 0, fmt.Errorf("topic %q: unexpected prefix", name)
	}

	agencyID, err := strconv.Atoi(raw)
	if err != nil || agencyID <= 0 {
		return 0, fmt.Errorf("topic %q: invalid agency id", name)
	}

	return agencyID, nil
}
