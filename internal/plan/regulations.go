package plan

import (
	"strings"

	"caseline/internal/client"
	"caseline/internal/risk"
)

// Regulatory frameworks a case can fall under. FINTRAC and CIRO always
// apply; the rest are conditional on the profile.
const (
	RegFINTRAC = "FINTRAC"
	RegCIRO    = "CIRO"
	RegOFAC    = "OFAC"
	RegFATCA   = "FATCA"
	RegCRS     = "CRS"
	RegEDD     = "EDD"
)

// DetectRegulations maps a client profile to its applicable frameworks.
func DetectRegulations(c client.Client) []string {
	regs := []string{RegFINTRAC, RegCIRO}
	add := func(r string) {
		for _, have := range regs {
			if have == r {
				return
			}
		}
		regs = append(regs, r)
	}

	switch c := c.(type) {
	case *client.Individual:
		if c.USPerson {
			add(RegOFAC)
			add(RegFATCA)
		}
		if hasUSIndicia(c) {
			add(RegFATCA)
		}
		if crsApplies(c.TaxResidencies) {
			add(RegCRS)
		}
		countries := append([]string{c.Citizenship, c.CountryOfResidence, c.CountryOfBirth}, c.TaxResidencies...)
		if anyFATFListed(countries) {
			add(RegEDD)
		}

	case *client.Business:
		if c.USNexus {
			add(RegOFAC)
			add(RegFATCA)
		}
		for _, o := range c.BeneficialOwners {
			if o.USPerson {
				add(RegFATCA)
				add(RegOFAC)
			}
		}
		all := append([]string(nil), c.CountriesOfOperation...)
		for _, o := range c.BeneficialOwners {
			all = append(all, o.TaxResidencies...)
		}
		if crsApplies(all) {
			add(RegCRS)
		}
		countries := append([]string{c.IncorporationJurisdiction}, c.CountriesOfOperation...)
		for _, o := range c.BeneficialOwners {
			countries = append(countries, o.Citizenship, o.CountryOfResidence)
		}
		if anyFATFListed(countries) {
			add(RegEDD)
		}
	}

	return regs
}

// hasUSIndicia checks the IRS indicia set: citizenship, birth, declaration,
// address, tax residency, TIN.
func hasUSIndicia(c *client.Individual) bool {
	if isUS(c.Citizenship) || isUS(c.CountryOfBirth) || c.USPerson || c.USTIN != "" {
		return true
	}
	if c.Address != nil && isUS(c.Address.Country) {
		return true
	}
	for _, t := range c.TaxResidencies {
		if isUS(t) {
			return true
		}
	}
	return false
}

// crsApplies reports a non-Canadian tax connection outside the US (the US
// reports under FATCA instead of CRS).
func crsApplies(countries []string) bool {
	for _, t := range countries {
		lc := strings.ToLower(strings.TrimSpace(t))
		if lc == "" || lc == "canada" || lc == "ca" || isUS(t) {
			continue
		}
		return true
	}
	return false
}

func anyFATFListed(countries []string) bool {
	for _, country := range countries {
		if country == "" {
			continue
		}
		if risk.FATFBlack(country) || risk.FATFGrey(country) {
			return true
		}
	}
	return false
}

func isUS(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "united states", "us", "usa":
		return true
	}
	return false
}
