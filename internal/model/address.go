// Package model defines the address records passed between pipeline stages.
package model

import (
	"strings"
)

// RDI is the Residential Delivery Indicator for a delivery point.
type RDI string

// RDI values as written to the output CSV.
const (
	RDIResidential RDI = "Residential"
	RDICommercial  RDI = "Commercial"
	RDIUnknown     RDI = "Unknown"
)

// CMRA indicates whether the address is a Commercial Mail Receiving Agency.
type CMRA string

// CMRA values as written to the output CSV.
const (
	CMRAYes     CMRA = "Yes"
	CMRANo      CMRA = "No"
	CMRAUnknown CMRA = "Unknown"
)

// ParseRDI maps a Smarty metadata.rdi value to an RDI.
// Anything other than the two documented values is Unknown.
func ParseRDI(s string) RDI {
	switch strings.TrimSpace(s) {
	case "Residential":
		return RDIResidential
	case "Commercial":
		return RDICommercial
	default:
		return RDIUnknown
	}
}

// ParseCMRA maps a Smarty analysis.dpv_cmra flag ("Y"/"N") to a CMRA.
func ParseCMRA(s string) CMRA {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y":
		return CMRAYes
	case "N":
		return CMRANo
	default:
		return CMRAUnknown
	}
}

// Address is one mailbox location as scraped from a listing page.
// Fields are immutable once written to a row; later stages add columns.
type Address struct {
	Street    string
	City      string
	State     string // two-letter abbreviation
	Zip       string // 5 digit, optionally zip+4
	DetailURL string
}

// Enriched is an Address plus the suite/unit number from its detail page.
// An empty Suite means no unit number exists on the page, not an error.
type Enriched struct {
	Address
	Suite string
}

// Verified is an Enriched address plus the delivery classification
// returned by the validation API.
type Verified struct {
	Enriched
	RDI  RDI
	CMRA CMRA
}

// SourceID returns the site's listing identifier: the slug of the detail
// page URL (".../s/<slug>"). Empty when the record has no detail URL.
func (a Address) SourceID() string {
	u := strings.TrimRight(strings.TrimSpace(a.DetailURL), "/")
	if u == "" {
		return ""
	}
	idx := strings.LastIndex(u, "/")
	if idx < 0 || idx == len(u)-1 {
		return ""
	}
	return u[idx+1:]
}

// Key returns the resume key for this record: the source ID when the
// record carries a detail URL, otherwise a normalized street|zip pair.
// Stages use it to skip rows already present in a partial output file.
func (a Address) Key() string {
	if id := a.SourceID(); id != "" {
		return id
	}
	street := strings.ToLower(strings.Join(strings.Fields(a.Street), " "))
	return street + "|" + strings.TrimSpace(a.Zip)
}

// Complete reports whether the record has every field the listing parser
// requires. Incomplete listings are skipped and counted, never emitted.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.Zip != ""
}
