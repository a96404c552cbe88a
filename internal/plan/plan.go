// Package plan turns an intake profile into the deterministic list of
// capability invocations the investigation stage will execute. The plan is
// computed once at intake and checkpointed with the case.
package plan

import (
	"caseline/internal/client"
)

// Screening capability names. Research capabilities gather evidence about a
// subject; utility capabilities run deterministic compliance checks over the
// profile and the evidence gathered so far.
const (
	CapIndividualSanctions    = "individual_sanctions"
	CapPEPDetection           = "pep_detection"
	CapIndividualAdverseMedia = "individual_adverse_media"
	CapEntityVerification     = "entity_verification"
	CapEntitySanctions        = "entity_sanctions"
	CapBusinessAdverseMedia   = "business_adverse_media"
	CapJurisdictionRisk       = "jurisdiction_risk"

	CapIDVerification         = "id_verification"
	CapSuitability            = "suitability"
	CapIndividualFATCACRS     = "individual_fatca_crs"
	CapEntityFATCACRS         = "entity_fatca_crs"
	CapBusinessRiskAssessment = "business_risk_assessment"
	CapEDDRequirements        = "edd_requirements"
	CapComplianceActions      = "compliance_actions"
)

// Invocation is one scheduled capability call against one subject.
type Invocation struct {
	Capability  string `json:"capability"`
	Subject     string `json:"subject"`
	SubjectRole string `json:"subject_role,omitempty"`
	Utility     bool   `json:"utility,omitempty"`
}

// Plan is the full investigation schedule for a case.
type Plan struct {
	ClientID    string       `json:"client_id"`
	ClientType  client.Type  `json:"client_type"`
	Invocations []Invocation `json:"invocations"`
	Regulations []string     `json:"regulations"`
}

// Build computes the plan for a client. Individuals get the personal
// screening set; businesses get the entity set plus one cascade of personal
// screenings per declared beneficial owner.
func Build(c client.Client) Plan {
	p := Plan{
		ClientID:    c.ClientID(),
		ClientType:  c.ClientType(),
		Regulations: DetectRegulations(c),
	}

	switch c := c.(type) {
	case *client.Individual:
		subject := c.FullName
		for _, name := range []string{
			CapIndividualSanctions, CapPEPDetection, CapIndividualAdverseMedia, CapJurisdictionRisk,
		} {
			p.Invocations = append(p.Invocations, Invocation{Capability: name, Subject: subject, SubjectRole: "client"})
		}
		for _, name := range []string{
			CapIDVerification, CapSuitability, CapIndividualFATCACRS, CapEDDRequirements, CapComplianceActions,
		} {
			p.Invocations = append(p.Invocations, Invocation{Capability: name, Subject: subject, SubjectRole: "client", Utility: true})
		}

	case *client.Business:
		subject := c.LegalName
		for _, name := range []string{
			CapEntityVerification, CapEntitySanctions, CapBusinessAdverseMedia, CapJurisdictionRisk,
		} {
			p.Invocations = append(p.Invocations, Invocation{Capability: name, Subject: subject, SubjectRole: "client"})
		}
		// One personal-screening cascade per declared owner.
		for _, owner := range c.BeneficialOwners {
			role := owner.SubjectRole()
			for _, name := range []string{
				CapIndividualSanctions, CapPEPDetection, CapIndividualAdverseMedia,
			} {
				p.Invocations = append(p.Invocations, Invocation{Capability: name, Subject: owner.FullName, SubjectRole: role})
			}
		}
		for _, name := range []string{
			CapIDVerification, CapSuitability, CapEntityFATCACRS, CapBusinessRiskAssessment, CapEDDRequirements, CapComplianceActions,
		} {
			p.Invocations = append(p.Invocations, Invocation{Capability: name, Subject: subject, SubjectRole: "client", Utility: true})
		}
	}

	return p
}

// UBOSubjects lists the owner names with a scheduled cascade, in plan order.
func (p Plan) UBOSubjects() []string {
	seen := map[string]bool{}
	var out []string
	for _, inv := range p.Invocations {
		if inv.SubjectRole != "client" && inv.SubjectRole != "" && !seen[inv.Subject] {
			seen[inv.Subject] = true
			out = append(out, inv.Subject)
		}
	}
	return out
}
