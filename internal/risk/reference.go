package risk

import "strings"

// Static reference data for scoring: FATF lists, OFAC programs, offshore
// jurisdictions, high-risk industries and occupations. Current as of the
// 2024-2025 FATF plenary cycle.

var fatfGreyList = countrySet(
	"Algeria", "Angola", "Bulgaria", "Burkina Faso", "Cameroon",
	"Côte d'Ivoire", "Croatia", "Democratic Republic of the Congo",
	"Haiti", "Kenya", "Lebanon", "Mali", "Monaco", "Mozambique",
	"Namibia", "Nigeria", "Philippines", "Senegal", "South Africa",
	"South Sudan", "Syria", "Tanzania", "Venezuela", "Vietnam", "Yemen",
)

var fatfBlackList = countrySet(
	"Iran", "Myanmar", "North Korea",
)

var ofacSanctioned = countrySet(
	"Cuba", "Iran", "North Korea", "Syria", "Russia",
	"Belarus", "Venezuela", "Myanmar", "Libya", "Somalia",
	"Sudan", "South Sudan", "Yemen", "Zimbabwe",
	"Central African Republic", "Democratic Republic of the Congo",
	"Iraq", "Lebanon", "Mali", "Nicaragua", "Ethiopia",
)

var offshoreJurisdictions = countrySet(
	"British Virgin Islands", "Cayman Islands", "Bermuda",
	"Jersey", "Guernsey", "Isle of Man",
	"Panama", "Bahamas", "Seychelles",
	"Mauritius", "Luxembourg", "Liechtenstein",
	"Monaco", "Andorra", "San Marino",
	"Vanuatu", "Samoa", "Marshall Islands",
	"Belize", "Nevis", "Saint Kitts and Nevis",
	"Turks and Caicos", "Gibraltar", "Malta",
	"Cyprus", "Netherlands Antilles", "Curaçao",
	"Aruba", "Sint Maarten",
)

var highRiskIndustries = []string{
	"money_services_business",
	"virtual_currency_exchange",
	"casino_gaming",
	"precious_metals_stones",
	"real_estate",
	"import_export",
	"arms_defense",
	"cash_intensive_business",
	"art_antiquities",
	"professional_services_trust",
	"non_profit_charity",
	"tobacco",
	"marijuana_cannabis",
	"construction",
	"offshore_banking",
}

var highRiskOccupations = []string{
	"politician", "government_official", "diplomat",
	"arms_dealer", "casino_operator", "money_service_operator",
	"precious_metals_dealer", "real_estate_developer",
	"lawyer_trust_services", "accountant_offshore",
	"import_export_trader",
}

// sourceOfFundsRisk maps normalized source-of-funds categories to points.
// Categories not listed score 0.
var sourceOfFundsRisk = map[string]int{
	"employment_income":  0,
	"salary":             0,
	"investment_returns": 0,
	"pension":            0,
	"inheritance":        5,
	"gift":               10,
	"business_income":    5,
	"real_estate_sale":   5,
	"legal_settlement":   10,
	"lottery_gambling":   15,
	"cryptocurrency":     15,
	"foreign_transfer":   10,
	"cash_savings":       10,
	"unknown":            20,
}

func countrySet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = true
	}
	return m
}

// Country classification helpers used by scoring, planning and regulation
// detection. Comparison is case-insensitive.

func FATFBlack(country string) bool { return fatfBlackList[strings.ToLower(strings.TrimSpace(country))] }
func FATFGrey(country string) bool  { return fatfGreyList[strings.ToLower(strings.TrimSpace(country))] }
func OFACSanctioned(country string) bool {
	return ofacSanctioned[strings.ToLower(strings.TrimSpace(country))]
}
func Offshore(country string) bool {
	return offshoreJurisdictions[strings.ToLower(strings.TrimSpace(country))]
}

// HighRiskIndustry reports whether the declared industry matches or contains
// a high-risk category.
func HighRiskIndustry(industry string) bool {
	key := normalizeKey(industry)
	if key == "" {
		return false
	}
	for _, hr := range highRiskIndustries {
		if key == hr || strings.Contains(key, hr) || strings.Contains(hr, key) {
			return true
		}
	}
	return false
}

// HighRiskOccupation reports whether the declared occupation matches or
// contains a high-risk category.
func HighRiskOccupation(occupation string) bool {
	key := normalizeKey(occupation)
	if key == "" {
		return false
	}
	for _, hr := range highRiskOccupations {
		if key == hr || strings.Contains(key, hr) || strings.Contains(hr, key) {
			return true
		}
	}
	return false
}

// SourceOfFundsPoints returns the points for a declared source of funds.
func SourceOfFundsPoints(source string) int {
	return sourceOfFundsRisk[normalizeKey(source)]
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

// domesticCanada reports whether the country is the home jurisdiction and
// exempt from foreign-residency scoring.
func domesticCanada(country string) bool {
	c := strings.ToLower(strings.TrimSpace(country))
	return c == "canada" || c == "ca"
}
