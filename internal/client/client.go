// Package client holds the intake models for onboarding subjects and the
// loader that reads a submitted profile from disk.
package client

import (
	"regexp"
	"strconv"
	"strings"
)

// Type discriminates the two intake profile shapes.
type Type string

const (
	TypeIndividual Type = "individual"
	TypeBusiness   Type = "business"
)

// Client is either an *Individual or a *Business profile.
type Client interface {
	ClientID() string
	ClientType() Type
	DisplayName() string
}

// Address is a mailing address; only Country participates in risk logic.
type Address struct {
	Street     string `yaml:"street" json:"street"`
	City       string `yaml:"city" json:"city"`
	Region     string `yaml:"region" json:"region"`
	PostalCode string `yaml:"postal_code" json:"postal_code"`
	Country    string `yaml:"country" json:"country"`
}

// Employment describes the declared occupation of an individual.
type Employment struct {
	Status     string `yaml:"status" json:"status"`
	Employer   string `yaml:"employer" json:"employer"`
	Occupation string `yaml:"occupation" json:"occupation"`
	Industry   string `yaml:"industry" json:"industry"`
}

// Individual is a natural-person intake profile.
type Individual struct {
	FullName           string     `yaml:"full_name" json:"full_name"`
	DateOfBirth        string     `yaml:"date_of_birth" json:"date_of_birth"`
	Citizenship        string     `yaml:"citizenship" json:"citizenship"`
	CountryOfBirth     string     `yaml:"country_of_birth" json:"country_of_birth"`
	CountryOfResidence string     `yaml:"country_of_residence" json:"country_of_residence"`
	Address            *Address   `yaml:"address" json:"address,omitempty"`
	Employment         Employment `yaml:"employment" json:"employment"`

	SourceOfFunds  string  `yaml:"source_of_funds" json:"source_of_funds"`
	AnnualIncome   float64 `yaml:"annual_income" json:"annual_income"`
	EstimatedWorth float64 `yaml:"estimated_net_worth" json:"estimated_net_worth"`

	PEPSelfDeclaration bool   `yaml:"pep_self_declaration" json:"pep_self_declaration"`
	PEPPosition        string `yaml:"pep_position" json:"pep_position"`

	USPerson       bool     `yaml:"us_person" json:"us_person"`
	USTIN          string   `yaml:"us_tin" json:"us_tin"`
	TaxResidencies []string `yaml:"tax_residencies" json:"tax_residencies"`

	// Account opened for someone else's benefit.
	ThirdPartyDetermination bool `yaml:"third_party_determination" json:"third_party_determination"`
}

func (c *Individual) ClientID() string    { return slug(c.FullName) }
func (c *Individual) ClientType() Type    { return TypeIndividual }
func (c *Individual) DisplayName() string { return c.FullName }

// BeneficialOwner is a declared owner or controller of a business client.
type BeneficialOwner struct {
	FullName           string   `yaml:"full_name" json:"full_name"`
	DateOfBirth        string   `yaml:"date_of_birth" json:"date_of_birth"`
	Citizenship        string   `yaml:"citizenship" json:"citizenship"`
	CountryOfResidence string   `yaml:"country_of_residence" json:"country_of_residence"`
	OwnershipPercent   float64  `yaml:"ownership_percent" json:"ownership_percent"`
	Role               string   `yaml:"role" json:"role"`
	PEPSelfDeclaration bool     `yaml:"pep_self_declaration" json:"pep_self_declaration"`
	USPerson           bool     `yaml:"us_person" json:"us_person"`
	TaxResidencies     []string `yaml:"tax_residencies" json:"tax_residencies"`
}

// SubjectRole renders the role string used on findings produced while
// screening this owner.
func (o BeneficialOwner) SubjectRole() string {
	if o.OwnershipPercent > 0 {
		return "UBO (" + trimFloat(o.OwnershipPercent) + "% owner)"
	}
	return "UBO"
}

// Business is a legal-entity intake profile.
type Business struct {
	LegalName                 string   `yaml:"legal_name" json:"legal_name"`
	OperatingName             string   `yaml:"operating_name" json:"operating_name"`
	RegistrationNumber        string   `yaml:"registration_number" json:"registration_number"`
	IncorporationDate         string   `yaml:"incorporation_date" json:"incorporation_date"`
	IncorporationJurisdiction string   `yaml:"incorporation_jurisdiction" json:"incorporation_jurisdiction"`
	Industry                  string   `yaml:"industry" json:"industry"`
	Address                   *Address `yaml:"address" json:"address,omitempty"`

	CountriesOfOperation []string `yaml:"countries_of_operation" json:"countries_of_operation"`
	AnnualTxnVolume      float64  `yaml:"annual_transaction_volume" json:"annual_transaction_volume"`
	SourceOfFunds        string   `yaml:"source_of_funds" json:"source_of_funds"`

	USNexus bool `yaml:"us_nexus" json:"us_nexus"`

	BeneficialOwners []BeneficialOwner `yaml:"beneficial_owners" json:"beneficial_owners"`

	ThirdPartyDetermination bool `yaml:"third_party_determination" json:"third_party_determination"`
}

func (c *Business) ClientID() string    { return slug(c.LegalName) }
func (c *Business) ClientType() Type    { return TypeBusiness }
func (c *Business) DisplayName() string { return c.LegalName }

// EntityAgeYears returns whole years since incorporation, or -1 when the
// date is missing or unparseable. asOf is "YYYY-MM-DD".
func (c *Business) EntityAgeYears(asOf string) int {
	if len(c.IncorporationDate) < 10 || len(asOf) < 10 {
		return -1
	}
	incYear, ok1 := atoi(c.IncorporationDate[:4])
	asYear, ok2 := atoi(asOf[:4])
	if !ok1 || !ok2 {
		return -1
	}
	years := asYear - incYear
	if c.IncorporationDate[5:10] > asOf[5:10] {
		years--
	}
	if years < 0 {
		return -1
	}
	return years
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slug builds a filesystem- and URL-safe identifier from a name.
func slug(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
