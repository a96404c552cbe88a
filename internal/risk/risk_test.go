package risk

import (
	"testing"
	"time"

	"caseline/internal/client"
	"caseline/internal/config"
)

func engine() *Engine {
	return NewEngine(config.Default().Bands)
}

func TestBandFor_Boundaries(t *testing.T) {
	e := engine()
	cases := []struct {
		score int
		want  Band
	}{
		{0, BandLow},
		{15, BandLow},
		{16, BandMedium},
		{35, BandMedium},
		{36, BandHigh},
		{60, BandHigh},
		{61, BandCritical},
		{100, BandCritical},
	}
	for _, tc := range cases {
		if got := e.BandFor(tc.score); got != tc.want {
			t.Errorf("BandFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestScoreIndividual_CleanProfileScoresZero(t *testing.T) {
	a := engine().ScoreIndividual(&client.Individual{
		FullName:       "Alice Chen",
		DateOfBirth:    "1988-04-12",
		Citizenship:    "Canada",
		CountryOfBirth: "Canada",
		Employment:     client.Employment{Occupation: "teacher"},
		SourceOfFunds:  "employment_income",
		AnnualIncome:   95000,
		EstimatedWorth: 400000,
		TaxResidencies: []string{"Canada"},
	})
	if a.Score != 0 {
		t.Errorf("Score = %d, want 0; factors: %+v", a.Score, a.Factors)
	}
	if a.Band != BandLow {
		t.Errorf("Band = %s, want LOW", a.Band)
	}
	if !a.Preliminary {
		t.Error("pass-1 assessment must be preliminary")
	}
	if len(a.Missing) != 0 {
		t.Errorf("Missing = %v, want none", a.Missing)
	}
}

func TestScoreIndividual_ForeignPEPWithListedJurisdictions(t *testing.T) {
	a := engine().ScoreIndividual(&client.Individual{
		FullName:           "Darius Rahimi",
		Citizenship:        "Iran",
		CountryOfBirth:     "Iran",
		PEPSelfDeclaration: true,
		PEPPosition:        "foreign cabinet minister",
		SourceOfFunds:      "cryptocurrency",
		AnnualIncome:       100000,
		EstimatedWorth:     6000000,
		TaxResidencies:     []string{"Canada", "Cayman Islands"},
	})

	// Foreign PEP 40 + Iran citizenship (black) 30 + crypto 15 +
	// wealth ratio 60x 15 + offshore residency 8 = 108.
	if a.Score != 108 {
		t.Errorf("Score = %d, want 108; factors: %+v", a.Score, a.Factors)
	}
	if a.Band != BandCritical {
		t.Errorf("Band = %s, want CRITICAL", a.Band)
	}
}

func TestScoreIndividual_MissingInputsScoreZeroAndAreReported(t *testing.T) {
	a := engine().ScoreIndividual(&client.Individual{
		FullName:    "Bare Profile",
		Citizenship: "Canada",
	})
	if a.Score != 0 {
		t.Errorf("Score = %d, want 0", a.Score)
	}
	want := map[string]bool{"source_of_funds": true, "wealth_income_ratio": true}
	for _, m := range a.Missing {
		if !want[m] {
			t.Errorf("unexpected missing field %q", m)
		}
		delete(want, m)
	}
	for m := range want {
		t.Errorf("missing field %q not reported", m)
	}
}

func TestScoreBusiness_FactorTable(t *testing.T) {
	twoYearsAgo := time.Now().UTC().AddDate(-2, 0, 0).Format("2006-01-02")
	a := engine().ScoreBusiness(&client.Business{
		LegalName:                 "Meridian Shipping Ltd",
		RegistrationNumber:        "BC1234567",
		IncorporationDate:         twoYearsAgo,
		IncorporationJurisdiction: "Panama",
		Industry:                  "import_export",
		CountriesOfOperation:      []string{"Canada", "Nigeria", "Panama"},
		AnnualTxnVolume:           12_000_000,
		USNexus:                   true,
		BeneficialOwners: []client.BeneficialOwner{
			{FullName: "Owner One", OwnershipPercent: 60},
		},
	})

	// Age <3y 8 + industry 15 + Nigeria (grey) 12 + Panama ops (offshore) 8
	// + volume >10M 10 + US nexus 10 + Panama incorporation 12 = 75.
	if a.Score != 75 {
		t.Errorf("Score = %d, want 75; factors: %+v", a.Score, a.Factors)
	}
	if a.Band != BandCritical {
		t.Errorf("Band = %s, want CRITICAL", a.Band)
	}
}

func TestScoreBusiness_NoOwnersDeclared(t *testing.T) {
	a := engine().ScoreBusiness(&client.Business{
		LegalName:         "Opaque Holdings",
		IncorporationDate: "2010-06-01",
		Industry:          "software",
	})
	found := false
	for _, f := range a.Factors {
		if f.Category == "ownership_complexity" && f.Points == 15 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 15-point ownership factor for zero declared owners; factors: %+v", a.Factors)
	}
}

func TestUBOFactor_HalfWeight(t *testing.T) {
	f := UBOFactor(map[string]int{"Risky Owner": 90, "Quiet Owner": 15})
	if f == nil {
		t.Fatal("expected a cascade factor")
	}
	if f.Points != 45 {
		t.Errorf("Points = %d, want 45", f.Points)
	}
	if f.Category != "ubo_cascade" || f.Source != "synthesis" {
		t.Errorf("unexpected factor metadata: %+v", f)
	}

	// Odd sub-scores truncate rather than round up.
	if odd := UBOFactor(map[string]int{"Risky Owner": 91}); odd == nil || odd.Points != 45 {
		t.Errorf("Points for 91 = %+v, want 45", odd)
	}

	if UBOFactor(map[string]int{"Clean Owner": 0}) != nil {
		t.Error("expected nil factor when no owner scored above zero")
	}
	if UBOFactor(nil) != nil {
		t.Error("expected nil factor for empty cascade")
	}
}

func TestRevise_AddsCascadeAndKeepsHistory(t *testing.T) {
	e := engine()
	prelim := e.ScoreBusiness(&client.Business{
		LegalName:         "Steady Corp",
		IncorporationDate: "2001-01-01",
		Industry:          "software",
		AnnualTxnVolume:   500_000,
		BeneficialOwners:  []client.BeneficialOwner{{FullName: "Risky Owner", OwnershipPercent: 80}},
	})
	if prelim.Score != 0 {
		t.Fatalf("prelim Score = %d, want 0; factors: %+v", prelim.Score, prelim.Factors)
	}

	rev := e.Revise(prelim, map[string]int{"Risky Owner": 90}, nil)
	if rev.Score != 45 {
		t.Errorf("revised Score = %d, want 45", rev.Score)
	}
	if rev.Band != BandHigh {
		t.Errorf("revised Band = %s, want HIGH", rev.Band)
	}
	if rev.Preliminary {
		t.Error("revised assessment must not be preliminary")
	}
	if len(rev.History) != 2 {
		t.Fatalf("History length = %d, want 2", len(rev.History))
	}
	if rev.History[0].Stage != "intake" || rev.History[1].Stage != "synthesis_revision" {
		t.Errorf("unexpected history: %+v", rev.History)
	}
	// The preliminary assessment is untouched.
	if len(prelim.History) != 1 {
		t.Errorf("prelim history mutated: %+v", prelim.History)
	}
}

func TestRevise_NeverLowersBand(t *testing.T) {
	e := engine()
	prelim := Assessment{
		Score:   40,
		Band:    BandHigh,
		Factors: []Factor{{Label: "seed", Points: 40, Category: "test", Source: "client_intake"}},
		History: []Snapshot{{Stage: "intake", Score: 40, Band: BandHigh}},
	}
	// Pass 2 with nothing new keeps the same score and band.
	rev := e.Revise(prelim, nil, nil)
	if rev.Band != BandHigh {
		t.Errorf("Band = %s, want HIGH", rev.Band)
	}
	if rev.Score != 40 {
		t.Errorf("Score = %d, want 40", rev.Score)
	}
}

func TestReferenceHelpers(t *testing.T) {
	if !FATFBlack("Iran") || !FATFBlack("iran") {
		t.Error("Iran must be FATF black, case-insensitive")
	}
	if !FATFGrey("Nigeria") {
		t.Error("Nigeria must be FATF grey")
	}
	if !OFACSanctioned("Russia") {
		t.Error("Russia must be OFAC sanctioned")
	}
	if !Offshore("Cayman Islands") {
		t.Error("Cayman Islands must be offshore")
	}
	if FATFBlack("Canada") || FATFGrey("Canada") || Offshore("Canada") {
		t.Error("Canada must not be listed")
	}
	if !HighRiskIndustry("Import/Export") {
		t.Error("Import/Export must normalize to a high-risk industry")
	}
	if HighRiskIndustry("software") {
		t.Error("software must not be high-risk")
	}
	if !HighRiskOccupation("casino operator") {
		t.Error("casino operator must be high-risk")
	}
	if SourceOfFundsPoints("Lottery Gambling") != 15 {
		t.Error("lottery_gambling must score 15")
	}
	if SourceOfFundsPoints("salary") != 0 {
		t.Error("salary must score 0")
	}
}
