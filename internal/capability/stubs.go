package capability

import (
	"context"
	"fmt"

	"caseline/internal/client"
	"caseline/internal/ledger"
	"caseline/internal/plan"
	"caseline/internal/risk"
)

// Func adapts a plain function into a Capability. Tests script failures and
// findings with it.
type Func struct {
	CapName string
	Fn      func(ctx context.Context, req Request) (*Result, error)
}

func (f *Func) Name() string { return f.CapName }
func (f *Func) Invoke(ctx context.Context, req Request) (*Result, error) {
	return f.Fn(ctx, req)
}

// RegisterStubs fills the registry with the deterministic profile-driven
// checks, so a screening run completes end-to-end without live research
// agents. Sanctions capabilities are registered separately (see the
// screening package).
func RegisterStubs(r *Registry) {
	r.Register(&Func{CapName: plan.CapPEPDetection, Fn: stubPEPDetection})
	r.Register(&Func{CapName: plan.CapIndividualAdverseMedia, Fn: stubAdverseMedia})
	r.Register(&Func{CapName: plan.CapBusinessAdverseMedia, Fn: stubAdverseMedia})
	r.Register(&Func{CapName: plan.CapJurisdictionRisk, Fn: stubJurisdictionRisk})
	r.Register(&Func{CapName: plan.CapEntityVerification, Fn: stubEntityVerification})
	r.Register(&Func{CapName: plan.CapIDVerification, Fn: stubIDVerification})
	r.Register(&Func{CapName: plan.CapSuitability, Fn: stubSuitability})
	r.Register(&Func{CapName: plan.CapIndividualFATCACRS, Fn: stubFATCACRS})
	r.Register(&Func{CapName: plan.CapEntityFATCACRS, Fn: stubFATCACRS})
	r.Register(&Func{CapName: plan.CapBusinessRiskAssessment, Fn: stubBusinessRiskAssessment})
	r.Register(&Func{CapName: plan.CapEDDRequirements, Fn: stubEDDRequirements})
	r.Register(&Func{CapName: plan.CapComplianceActions, Fn: stubComplianceActions})
}

func stubPEPDetection(_ context.Context, req Request) (*Result, error) {
	declared := false
	switch c := req.Client.(type) {
	case *client.Individual:
		if req.SubjectRole == "client" {
			declared = c.PEPSelfDeclaration
		}
	case *client.Business:
		for _, o := range c.BeneficialOwners {
			if o.FullName == req.Subject {
				declared = o.PEPSelfDeclaration
			}
		}
	}

	f := ledger.Finding{
		Capability:  plan.CapPEPDetection,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicPEP,
		Class:       ledger.Sourced,
		SourceRef:   "registry://pep-declarations",
	}
	if declared {
		f.Claim = "Self-declared politically exposed position confirmed against intake declaration"
		f.Polarity = ledger.PolarityAdverse
	} else {
		f.Claim = "No politically exposed position located for subject"
		f.Polarity = ledger.PolarityClear
	}
	return &Result{Findings: []ledger.Finding{f}}, nil
}

func stubAdverseMedia(_ context.Context, req Request) (*Result, error) {
	topic := plan.CapIndividualAdverseMedia
	if req.Client.ClientType() == client.TypeBusiness && req.SubjectRole == "client" {
		topic = plan.CapBusinessAdverseMedia
	}
	return &Result{Findings: []ledger.Finding{{
		Capability:  topic,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicAdverseMedia,
		Claim:       "No adverse media coverage located in indexed sources",
		Class:       ledger.Sourced,
		Polarity:    ledger.PolarityClear,
		SourceRef:   "index://media-archive",
	}}}, nil
}

func stubJurisdictionRisk(_ context.Context, req Request) (*Result, error) {
	var countries []string
	switch c := req.Client.(type) {
	case *client.Individual:
		countries = append([]string{c.Citizenship, c.CountryOfResidence, c.CountryOfBirth}, c.TaxResidencies...)
	case *client.Business:
		countries = append([]string{c.IncorporationJurisdiction}, c.CountriesOfOperation...)
	}

	var findings []ledger.Finding
	seen := map[string]bool{}
	for _, country := range countries {
		if country == "" || seen[country] {
			continue
		}
		seen[country] = true
		var note string
		switch {
		case risk.FATFBlack(country):
			note = "FATF call-for-action jurisdiction"
		case risk.FATFGrey(country):
			note = "FATF increased-monitoring jurisdiction"
		case risk.OFACSanctioned(country):
			note = "active OFAC sanctions program"
		case risk.Offshore(country):
			note = "offshore financial centre"
		default:
			continue
		}
		findings = append(findings, ledger.Finding{
			Capability:  plan.CapJurisdictionRisk,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicJurisdiction,
			Claim:       fmt.Sprintf("Jurisdiction exposure: %s (%s)", country, note),
			Class:       ledger.Inferred,
			Polarity:    ledger.PolarityAdverse,
		})
	}
	if len(findings) == 0 {
		findings = append(findings, ledger.Finding{
			Capability:  plan.CapJurisdictionRisk,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicJurisdiction,
			Claim:       "No listed-jurisdiction exposure in declared countries",
			Class:       ledger.Sourced,
			Polarity:    ledger.PolarityClear,
			SourceRef:   "https://www.fatf-gafi.org/en/publications/High-risk-and-other-monitored-jurisdictions.html",
		})
	}
	return &Result{Findings: findings}, nil
}

func stubEntityVerification(_ context.Context, req Request) (*Result, error) {
	c, ok := req.Client.(*client.Business)
	if !ok {
		return nil, &Failure{Capability: plan.CapEntityVerification, Kind: FailRefused, Msg: "entity verification requires a business profile"}
	}
	if c.RegistrationNumber == "" {
		return &Result{Findings: []ledger.Finding{{
			Capability:  plan.CapEntityVerification,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicIdentity,
			Claim:       "Registration number not declared; corporate registry check inconclusive",
			Class:       ledger.Unknown,
		}}}, nil
	}
	return &Result{Findings: []ledger.Finding{{
		Capability:  plan.CapEntityVerification,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicIdentity,
		Claim:       fmt.Sprintf("Registration %s confirmed in %s corporate registry", c.RegistrationNumber, c.IncorporationJurisdiction),
		Class:       ledger.Verified,
		SourceRef:   "registry://corporations",
		Quote:       fmt.Sprintf("Entity %q, registration number %s, status active", c.LegalName, c.RegistrationNumber),
		Value:       c.RegistrationNumber,
	}}}, nil
}

func stubIDVerification(_ context.Context, req Request) (*Result, error) {
	dob := ""
	switch c := req.Client.(type) {
	case *client.Individual:
		dob = c.DateOfBirth
	case *client.Business:
		for _, o := range c.BeneficialOwners {
			if o.FullName == req.Subject {
				dob = o.DateOfBirth
			}
		}
	}
	if dob == "" {
		return &Result{Findings: []ledger.Finding{{
			Capability:  plan.CapIDVerification,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicIdentity,
			Claim:       "Date of birth not declared; identity document check inconclusive",
			Class:       ledger.Unknown,
		}}}, nil
	}
	return &Result{Findings: []ledger.Finding{{
		Capability:  plan.CapIDVerification,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicIdentity,
		Claim:       "Identity document details match intake declaration",
		Class:       ledger.Verified,
		SourceRef:   "document://government-id",
		Quote:       fmt.Sprintf("Name %q, date of birth %s", req.Subject, dob),
		Value:       dob,
	}}}, nil
}

func stubSuitability(_ context.Context, req Request) (*Result, error) {
	return &Result{Findings: []ledger.Finding{{
		Capability:  plan.CapSuitability,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicRiskFactor,
		Claim:       "Declared profile consistent with requested account activity",
		Class:       ledger.Inferred,
		Polarity:    ledger.PolarityClear,
	}}}, nil
}

func stubFATCACRS(_ context.Context, req Request) (*Result, error) {
	capName := plan.CapIndividualFATCACRS
	if req.Client.ClientType() == client.TypeBusiness {
		capName = plan.CapEntityFATCACRS
	}

	regs := plan.DetectRegulations(req.Client)
	fatca, crs := false, false
	for _, r := range regs {
		switch r {
		case plan.RegFATCA:
			fatca = true
		case plan.RegCRS:
			crs = true
		}
	}
	claim := "No FATCA or CRS reporting obligations identified"
	switch {
	case fatca && crs:
		claim = "FATCA and CRS reporting obligations both apply"
	case fatca:
		claim = "FATCA reporting obligations apply (US indicia present)"
	case crs:
		claim = "CRS reporting obligations apply (non-resident tax connection)"
	}
	return &Result{Findings: []ledger.Finding{{
		Capability:  capName,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicRiskFactor,
		Claim:       claim,
		Class:       ledger.Sourced,
		SourceRef:   "https://www.canada.ca/en/revenue-agency/services/tax/international-non-residents/enhanced-financial-account-information-reporting.html",
	}}}, nil
}

func stubBusinessRiskAssessment(_ context.Context, req Request) (*Result, error) {
	c, ok := req.Client.(*client.Business)
	if !ok {
		return nil, &Failure{Capability: plan.CapBusinessRiskAssessment, Kind: FailRefused, Msg: "business risk assessment requires a business profile"}
	}
	claim := fmt.Sprintf("Business model review: %s operating in %d declared countries", c.Industry, len(c.CountriesOfOperation))
	return &Result{Findings: []ledger.Finding{{
		Capability:  plan.CapBusinessRiskAssessment,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicRiskFactor,
		Claim:       claim,
		Class:       ledger.Inferred,
	}}}, nil
}

func stubEDDRequirements(_ context.Context, req Request) (*Result, error) {
	edd := false
	for _, r := range plan.DetectRegulations(req.Client) {
		if r == plan.RegEDD {
			edd = true
		}
	}
	claim := "Standard due diligence sufficient; no enhanced measures triggered"
	if edd {
		claim = "Enhanced due diligence required: FATF-listed jurisdiction involvement"
	}
	return &Result{Findings: []ledger.Finding{{
		Capability:  plan.CapEDDRequirements,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicRiskFactor,
		Claim:       claim,
		Class:       ledger.Sourced,
		SourceRef:   "https://fintrac-canafe.canada.ca/guidance-directives/client-clientele/Guide11/11-eng",
	}}}, nil
}

func stubComplianceActions(_ context.Context, req Request) (*Result, error) {
	regs := plan.DetectRegulations(req.Client)
	return &Result{Findings: []ledger.Finding{{
		Capability:  plan.CapComplianceActions,
		Subject:     req.Subject,
		SubjectRole: req.SubjectRole,
		Topic:       ledger.TopicRiskFactor,
		Claim:       fmt.Sprintf("Applicable frameworks: %v; record-keeping and reporting actions queued", regs),
		Class:       ledger.Sourced,
		SourceRef:   "https://fintrac-canafe.canada.ca/guidance-directives/1-eng",
	}}}, nil
}
