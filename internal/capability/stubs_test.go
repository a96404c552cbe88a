package capability

import (
	"context"
	"testing"

	"caseline/internal/client"
	"caseline/internal/plan"
)

func TestStubFATCACRS_CapabilityFollowsRegistration(t *testing.T) {
	reg := NewRegistry()
	RegisterStubs(reg)

	biz := &client.Business{LegalName: "Acme Exports Ltd", USNexus: true}
	res, err := reg.Lookup(plan.CapEntityFATCACRS).Invoke(context.Background(), Request{
		Client: biz, Subject: biz.LegalName, SubjectRole: "client",
	})
	if err != nil {
		t.Fatalf("Invoke entity check: %v", err)
	}
	if len(res.Findings) != 1 || res.Findings[0].Capability != plan.CapEntityFATCACRS {
		t.Errorf("entity finding = %+v, want capability %s", res.Findings, plan.CapEntityFATCACRS)
	}

	ind := &client.Individual{FullName: "Alice Chen", USPerson: true, TaxResidencies: []string{"Canada"}}
	res, err = reg.Lookup(plan.CapIndividualFATCACRS).Invoke(context.Background(), Request{
		Client: ind, Subject: ind.FullName, SubjectRole: "client",
	})
	if err != nil {
		t.Fatalf("Invoke individual check: %v", err)
	}
	if len(res.Findings) != 1 || res.Findings[0].Capability != plan.CapIndividualFATCACRS {
		t.Errorf("individual finding = %+v, want capability %s", res.Findings, plan.CapIndividualFATCACRS)
	}
}
