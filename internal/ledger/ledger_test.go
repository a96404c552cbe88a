package ledger

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"caseline/internal/store"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	st := store.NewMemStore()
	id, err := st.CreateCase(&store.Case{ClientID: "c-1", ClientType: "individual", DisplayName: "Test", Stage: "INTAKE", Status: "open"})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	led, err := New(st, id)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return led
}

func TestRecord_AssignsIDAndPersists(t *testing.T) {
	led := newLedger(t)

	id, err := led.Record(Finding{
		Capability: "pep_detection",
		Subject:    "Alice Chen",
		Topic:      TopicPEP,
		Claim:      "No politically exposed position located",
		Class:      Sourced,
		Polarity:   PolarityClear,
		SourceRef:  "registry://pep-declarations",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty finding ID")
	}

	all, err := led.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(all))
	}
	if all[0].ID != id {
		t.Errorf("ID = %q, want %q", all[0].ID, id)
	}
	if all[0].RecordedAt == "" {
		t.Error("expected RecordedAt to be stamped")
	}
}

func TestRecord_ValidationErrors(t *testing.T) {
	led := newLedger(t)

	cases := []struct {
		name  string
		f     Finding
		field string
	}{
		{
			name:  "missing class",
			f:     Finding{Subject: "Alice", Claim: "something"},
			field: "class",
		},
		{
			name:  "unknown class",
			f:     Finding{Subject: "Alice", Claim: "something", Class: "GOLD"},
			field: "class",
		},
		{
			name:  "verified without source",
			f:     Finding{Subject: "Alice", Claim: "something", Class: Verified, Quote: "quoted"},
			field: "source_ref",
		},
		{
			name:  "verified without quote",
			f:     Finding{Subject: "Alice", Claim: "something", Class: Verified, SourceRef: "list://sdn"},
			field: "quote",
		},
		{
			name:  "sourced without source",
			f:     Finding{Subject: "Alice", Claim: "something", Class: Sourced},
			field: "source_ref",
		},
		{
			name:  "missing subject",
			f:     Finding{Claim: "something", Class: Inferred},
			field: "subject",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := led.Record(tc.f)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	// Nothing reached the sink.
	all, err := led.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty ledger after rejected records, got %d findings", len(all))
	}
}

func TestRecord_SupersedesUnknownFinding(t *testing.T) {
	led := newLedger(t)

	_, err := led.Record(Finding{
		Subject: "Alice", Claim: "corrected claim", Class: Inferred, Supersedes: "no-such-id",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown supersedes target, got %v", err)
	}
}

func TestActive_FiltersSuperseded(t *testing.T) {
	led := newLedger(t)

	first, err := led.Record(Finding{
		Subject: "Acme Ltd", Topic: TopicIdentity, Claim: "registration 12345", Class: Inferred, Value: "12345",
	})
	if err != nil {
		t.Fatalf("Record first: %v", err)
	}
	second, err := led.Record(Finding{
		Subject: "Acme Ltd", Topic: TopicIdentity, Claim: "registration 54321 per registry extract",
		Class: Verified, SourceRef: "registry://corporations", Quote: "registration number 54321",
		Value: "54321", Supersedes: first,
	})
	if err != nil {
		t.Fatalf("Record second: %v", err)
	}

	all, err := led.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ledger must keep both findings, got %d", len(all))
	}

	active := Active(all)
	if len(active) != 1 {
		t.Fatalf("expected 1 active finding, got %d", len(active))
	}
	if active[0].ID != second {
		t.Errorf("active finding = %s, want %s", active[0].ID, second)
	}
}

func TestQuery_Filters(t *testing.T) {
	led := newLedger(t)

	seed := []Finding{
		{Subject: "Alice Chen", Topic: TopicSanctions, Claim: "no matches", Class: Sourced, SourceRef: "list://csl", Polarity: PolarityClear},
		{Subject: "Alice Chen", Topic: TopicPEP, Claim: "no exposure", Class: Sourced, SourceRef: "registry://pep"},
		{Subject: "Bob Mora", Topic: TopicSanctions, Claim: "match found", Class: Verified, SourceRef: "list://sdn", Quote: "Bob Mora; programs: X", Polarity: PolarityAdverse},
	}
	for i, f := range seed {
		if _, err := led.Record(f); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	got, err := led.Query(Filter{Subject: "alice chen", Topic: TopicSanctions})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if diff := cmp.Diff("no matches", got[0].Claim); diff != "" {
		t.Errorf("claim mismatch (-want +got):\n%s", diff)
	}

	byClass, err := led.Query(Filter{Class: Verified})
	if err != nil {
		t.Fatalf("Query by class: %v", err)
	}
	if len(byClass) != 1 || byClass[0].Subject != "Bob Mora" {
		t.Errorf("expected only Bob Mora's verified finding, got %+v", byClass)
	}
}
