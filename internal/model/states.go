package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// AllStates is the sentinel target that expands to every state slug
// discovered on the directory's index page.
const AllStates = "all"

// ErrInvalidTarget is returned when a lister target is neither a known
// state slug nor the all-states sentinel.
var ErrInvalidTarget = eris.New("model: invalid target")

// stateSlugs is the set of directory slugs the site publishes, one per
// state plus DC.
var stateSlugs = map[string]bool{
	"alabama": true, "alaska": true, "arizona": true, "arkansas": true,
	"california": true, "colorado": true, "connecticut": true, "delaware": true,
	"district-of-columbia": true, "florida": true, "georgia": true,
	"hawaii": true, "idaho": true, "illinois": true, "indiana": true,
	"iowa": true, "kansas": true, "kentucky": true, "louisiana": true,
	"maine": true, "maryland": true, "massachusetts": true, "michigan": true,
	"minnesota": true, "mississippi": true, "missouri": true, "montana": true,
	"nebraska": true, "nevada": true, "new-hampshire": true, "new-jersey": true,
	"new-mexico": true, "new-york": true, "north-carolina": true,
	"north-dakota": true, "ohio": true, "oklahoma": true, "oregon": true,
	"pennsylvania": true, "rhode-island": true, "south-carolina": true,
	"south-dakota": true, "tennessee": true, "texas": true, "utah": true,
	"vermont": true, "virginia": true, "washington": true,
	"west-virginia": true, "wisconsin": true, "wyoming": true,
}

// ValidateTarget normalizes a lister target and verifies it resolves to a
// known state slug or the all-states sentinel. "us" is accepted as an
// alias for the sentinel (legacy operator convention).
func ValidateTarget(target string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == AllStates || t == "us" {
		return AllStates, nil
	}
	if stateSlugs[t] {
		return t, nil
	}
	return "", eris.Wrapf(ErrInvalidTarget, "unknown state slug %q", target)
}

// StateSlugs returns the known slugs in sorted order.
func StateSlugs() []string {
	out := make([]string, 0, len(stateSlugs))
	for s := range stateSlugs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
