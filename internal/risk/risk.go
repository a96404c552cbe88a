// Package risk implements the two-pass additive scoring engine. Pass 1
// scores the intake profile alone; pass 2 folds in the beneficial-owner
// cascade and factors discovered during synthesis.
package risk

import (
	"fmt"
	"strings"
	"time"

	"caseline/internal/client"
	"caseline/internal/config"
)

// Band is the qualitative risk tier derived from the numeric score.
type Band string

const (
	BandLow      Band = "LOW"
	BandMedium   Band = "MEDIUM"
	BandHigh     Band = "HIGH"
	BandCritical Band = "CRITICAL"
)

// bandRank orders bands for floor comparisons.
func bandRank(b Band) int {
	switch b {
	case BandLow:
		return 0
	case BandMedium:
		return 1
	case BandHigh:
		return 2
	default:
		return 3
	}
}

// Factor is one additive contribution to the score.
type Factor struct {
	Label    string `json:"label"`
	Points   int    `json:"points"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// Snapshot is one entry in the score history.
type Snapshot struct {
	Stage string `json:"stage"`
	Score int    `json:"score"`
	Band  Band   `json:"band"`
}

// Assessment is the outcome of a scoring pass. Missing lists intake fields
// that could not be scored; each becomes an Unknown finding on the ledger.
type Assessment struct {
	Score       int        `json:"score"`
	Band        Band       `json:"band"`
	Factors     []Factor   `json:"factors"`
	Preliminary bool       `json:"preliminary"`
	History     []Snapshot `json:"history"`
	Missing     []string   `json:"missing,omitempty"`
}

// Engine applies the policy band breakpoints to the factor tables.
type Engine struct {
	bands config.Breakpoints
	now   func() time.Time
}

// NewEngine builds a scoring engine with the given band policy.
func NewEngine(bands config.Breakpoints) *Engine {
	return &Engine{bands: bands, now: time.Now}
}

// BandFor maps a score onto a band. Breakpoints are inclusive upper bounds,
// so a score exactly on a boundary stays in the band the table names.
func (e *Engine) BandFor(score int) Band {
	switch {
	case score <= e.bands.Low:
		return BandLow
	case score <= e.bands.Medium:
		return BandMedium
	case score <= e.bands.High:
		return BandHigh
	default:
		return BandCritical
	}
}

// Score runs pass 1 for either client type.
func (e *Engine) Score(c client.Client) Assessment {
	switch c := c.(type) {
	case *client.Individual:
		return e.ScoreIndividual(c)
	case *client.Business:
		return e.ScoreBusiness(c)
	default:
		return e.finish(nil, nil, "intake", true)
	}
}

// ScoreIndividual runs pass 1 over a natural-person profile.
func (e *Engine) ScoreIndividual(c *client.Individual) Assessment {
	var factors []Factor
	var missing []string

	if c.PEPSelfDeclaration {
		switch classifyPEPPosition(c.PEPPosition) {
		case "foreign":
			factors = append(factors, Factor{Label: "Foreign PEP (self-declared)", Points: 40, Category: "pep", Source: "client_intake"})
		case "hio":
			factors = append(factors, Factor{Label: "Head of International Organization", Points: 30, Category: "pep", Source: "client_intake"})
		default:
			factors = append(factors, Factor{Label: "Domestic PEP (self-declared)", Points: 25, Category: "pep", Source: "client_intake"})
		}
	}

	switch {
	case c.Citizenship == "":
		missing = append(missing, "citizenship")
	case FATFBlack(c.Citizenship):
		factors = append(factors, Factor{Label: fmt.Sprintf("Citizenship: %s (FATF black list)", c.Citizenship), Points: 30, Category: "citizenship", Source: "client_intake"})
	case FATFGrey(c.Citizenship):
		factors = append(factors, Factor{Label: fmt.Sprintf("Citizenship: %s (FATF grey list)", c.Citizenship), Points: 15, Category: "citizenship", Source: "client_intake"})
	case OFACSanctioned(c.Citizenship):
		factors = append(factors, Factor{Label: fmt.Sprintf("Citizenship: %s (OFAC sanctioned)", c.Citizenship), Points: 20, Category: "citizenship", Source: "client_intake"})
	}

	if cob := c.CountryOfBirth; cob != "" && cob != c.Citizenship {
		if FATFBlack(cob) {
			factors = append(factors, Factor{Label: fmt.Sprintf("Country of birth: %s (FATF black list)", cob), Points: 15, Category: "country_of_birth", Source: "client_intake"})
		} else if FATFGrey(cob) {
			factors = append(factors, Factor{Label: fmt.Sprintf("Country of birth: %s (FATF grey list)", cob), Points: 8, Category: "country_of_birth", Source: "client_intake"})
		}
	}

	if occ := c.Employment.Occupation; occ != "" {
		if HighRiskOccupation(occ) {
			factors = append(factors, Factor{Label: fmt.Sprintf("High-risk occupation: %s", occ), Points: 10, Category: "occupation", Source: "client_intake"})
		}
	}

	if c.SourceOfFunds == "" {
		missing = append(missing, "source_of_funds")
	} else if pts := SourceOfFundsPoints(c.SourceOfFunds); pts > 0 {
		factors = append(factors, Factor{Label: fmt.Sprintf("Source of funds: %s", c.SourceOfFunds), Points: pts, Category: "source_of_funds", Source: "client_intake"})
	}

	if c.EstimatedWorth > 0 && c.AnnualIncome > 0 {
		ratio := c.EstimatedWorth / c.AnnualIncome
		if ratio > 50 {
			factors = append(factors, Factor{Label: fmt.Sprintf("Wealth/income ratio: %.0fx (very high)", ratio), Points: 15, Category: "wealth_ratio", Source: "client_intake"})
		} else if ratio > 20 {
			factors = append(factors, Factor{Label: fmt.Sprintf("Wealth/income ratio: %.0fx (elevated)", ratio), Points: 8, Category: "wealth_ratio", Source: "client_intake"})
		}
	} else if c.EstimatedWorth == 0 || c.AnnualIncome == 0 {
		missing = append(missing, "wealth_income_ratio")
	}

	if c.USPerson {
		factors = append(factors, Factor{Label: "US person, FATCA reporting required", Points: 5, Category: "us_nexus", Source: "client_intake"})
	}

	for _, tr := range c.TaxResidencies {
		if domesticCanada(tr) {
			continue
		}
		switch {
		case FATFBlack(tr):
			factors = append(factors, Factor{Label: fmt.Sprintf("Tax residency: %s (FATF black list)", tr), Points: 20, Category: "tax_residency", Source: "client_intake"})
		case FATFGrey(tr):
			factors = append(factors, Factor{Label: fmt.Sprintf("Tax residency: %s (FATF grey list)", tr), Points: 10, Category: "tax_residency", Source: "client_intake"})
		case Offshore(tr):
			factors = append(factors, Factor{Label: fmt.Sprintf("Tax residency: %s (offshore jurisdiction)", tr), Points: 8, Category: "tax_residency", Source: "client_intake"})
		default:
			factors = append(factors, Factor{Label: fmt.Sprintf("Non-Canadian tax residency: %s", tr), Points: 3, Category: "tax_residency", Source: "client_intake"})
		}
	}

	if c.ThirdPartyDetermination {
		factors = append(factors, Factor{Label: "Third-party account determination", Points: 15, Category: "third_party", Source: "client_intake"})
	}

	return e.finish(factors, missing, "intake", true)
}

// ScoreBusiness runs pass 1 over a legal-entity profile.
func (e *Engine) ScoreBusiness(c *client.Business) Assessment {
	var factors []Factor
	var missing []string

	if c.IncorporationDate == "" {
		missing = append(missing, "incorporation_date")
	} else {
		switch years := c.EntityAgeYears(e.now().UTC().Format("2006-01-02")); {
		case years < 0:
			missing = append(missing, "incorporation_date")
		case years < 1:
			factors = append(factors, Factor{Label: "Entity age < 1 year (shell company risk)", Points: 15, Category: "entity_age", Source: "client_intake"})
		case years < 3:
			factors = append(factors, Factor{Label: "Entity age < 3 years", Points: 8, Category: "entity_age", Source: "client_intake"})
		}
	}

	if c.Industry == "" {
		missing = append(missing, "industry")
	} else if HighRiskIndustry(c.Industry) {
		factors = append(factors, Factor{Label: fmt.Sprintf("High-risk industry: %s", c.Industry), Points: 15, Category: "industry", Source: "client_intake"})
	}

	for _, country := range c.CountriesOfOperation {
		if domesticCanada(country) {
			continue
		}
		switch {
		case FATFBlack(country):
			factors = append(factors, Factor{Label: fmt.Sprintf("Operations in %s (FATF black list)", country), Points: 25, Category: "jurisdiction", Source: "client_intake"})
		case FATFGrey(country):
			factors = append(factors, Factor{Label: fmt.Sprintf("Operations in %s (FATF grey list)", country), Points: 12, Category: "jurisdiction", Source: "client_intake"})
		case OFACSanctioned(country):
			factors = append(factors, Factor{Label: fmt.Sprintf("Operations in %s (OFAC sanctioned)", country), Points: 15, Category: "jurisdiction", Source: "client_intake"})
		case Offshore(country):
			factors = append(factors, Factor{Label: fmt.Sprintf("Operations in %s (offshore jurisdiction)", country), Points: 8, Category: "jurisdiction", Source: "client_intake"})
		}
	}

	switch {
	case c.AnnualTxnVolume > 10_000_000:
		factors = append(factors, Factor{Label: "Transaction volume > $10M", Points: 10, Category: "transaction_volume", Source: "client_intake"})
	case c.AnnualTxnVolume > 1_000_000:
		factors = append(factors, Factor{Label: "Transaction volume > $1M", Points: 5, Category: "transaction_volume", Source: "client_intake"})
	case c.AnnualTxnVolume == 0:
		missing = append(missing, "annual_transaction_volume")
	}

	if n := len(c.BeneficialOwners); n > 4 {
		factors = append(factors, Factor{Label: fmt.Sprintf("Complex ownership (%d beneficial owners)", n), Points: 10, Category: "ownership_complexity", Source: "client_intake"})
	} else if n == 0 {
		factors = append(factors, Factor{Label: "No beneficial owners declared", Points: 15, Category: "ownership_complexity", Source: "client_intake"})
	}

	if c.USNexus {
		factors = append(factors, Factor{Label: "US nexus, FATCA/OFAC compliance required", Points: 10, Category: "us_nexus", Source: "client_intake"})
	}

	if c.IncorporationJurisdiction != "" && Offshore(c.IncorporationJurisdiction) {
		factors = append(factors, Factor{Label: fmt.Sprintf("Incorporated in %s (offshore)", c.IncorporationJurisdiction), Points: 12, Category: "incorporation", Source: "client_intake"})
	}

	if c.ThirdPartyDetermination {
		factors = append(factors, Factor{Label: "Third-party account determination", Points: 15, Category: "third_party", Source: "client_intake"})
	}

	return e.finish(factors, missing, "intake", true)
}

// UBOFactor converts the worst beneficial-owner sub-score into a pass-2
// factor at half weight, truncated. Returns nil when no owner scored above
// zero.
func UBOFactor(uboScores map[string]int) *Factor {
	maxName, maxScore := "", 0
	for name, score := range uboScores {
		if score > maxScore || (score == maxScore && maxScore > 0 && name < maxName) {
			maxName, maxScore = name, score
		}
	}
	if maxScore <= 0 {
		return nil
	}
	return &Factor{
		Label:    fmt.Sprintf("UBO cascade: %s (score %d x 0.5)", maxName, maxScore),
		Points:   int(float64(maxScore) * 0.5),
		Category: "ubo_cascade",
		Source:   "synthesis",
	}
}

// Revise runs pass 2: the preliminary factors plus the UBO cascade and any
// synthesis-discovered factors. The band never drops below the preliminary
// band; new evidence can only hold or raise it.
func (e *Engine) Revise(prelim Assessment, uboScores map[string]int, extra []Factor) Assessment {
	factors := append([]Factor(nil), prelim.Factors...)
	if f := UBOFactor(uboScores); f != nil {
		factors = append(factors, *f)
	}
	factors = append(factors, extra...)

	total := 0
	for _, f := range factors {
		total += f.Points
	}
	band := e.BandFor(total)
	if bandRank(band) < bandRank(prelim.Band) {
		band = prelim.Band
	}

	history := append([]Snapshot(nil), prelim.History...)
	history = append(history, Snapshot{Stage: "synthesis_revision", Score: total, Band: band})

	return Assessment{
		Score:       total,
		Band:        band,
		Factors:     factors,
		Preliminary: false,
		History:     history,
		Missing:     prelim.Missing,
	}
}

func (e *Engine) finish(factors []Factor, missing []string, stage string, preliminary bool) Assessment {
	total := 0
	for _, f := range factors {
		total += f.Points
	}
	band := e.BandFor(total)
	return Assessment{
		Score:       total,
		Band:        band,
		Factors:     factors,
		Preliminary: preliminary,
		History:     []Snapshot{{Stage: stage, Score: total, Band: band}},
		Missing:     missing,
	}
}

// classifyPEPPosition buckets a self-declared position into foreign, HIO or
// domestic exposure. Foreign outranks HIO when a description mentions both.
func classifyPEPPosition(position string) string {
	p := strings.ToLower(position)
	switch {
	case strings.Contains(p, "foreign") || strings.Contains(p, "international"):
		return "foreign"
	case strings.Contains(p, "hio") || strings.Contains(p, "head of international"):
		return "hio"
	default:
		return "domestic"
	}
}
