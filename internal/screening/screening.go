// Package screening is the deterministic consolidated-screening-list check.
// It matches subject names against a bundled list snapshot with token-set
// similarity and emits Verified findings for hits, so sanctions screening
// runs end-to-end without a live list service.
package screening

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"caseline/internal/capability"
	"caseline/internal/ledger"
)

// Entry is one screening-list record.
type Entry struct {
	Name     string   `yaml:"name" json:"name"`
	List     string   `yaml:"list" json:"list"`
	Country  string   `yaml:"country" json:"country"`
	Programs []string `yaml:"programs" json:"programs"`
	Remarks  string   `yaml:"remarks" json:"remarks"`
}

// Match is one scored hit against the list.
type Match struct {
	Entry Entry
	Score float64
}

// Similarity is token-set overlap between two names, order independent.
func Similarity(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:()\"'")
		if tok != "" {
			out[tok] = true
		}
	}
	return out
}

// Search scores name against every entry and returns hits at or above
// threshold, best first.
func Search(name string, entries []Entry, threshold float64) []Match {
	var out []Match
	for _, e := range entries {
		if score := Similarity(name, e.Name); score >= threshold {
			out = append(out, Match{Entry: e, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.Name < out[j].Entry.Name
	})
	return out
}

// Checker implements the sanctions capability over a list snapshot.
type Checker struct {
	capName   string
	entries   []Entry
	threshold float64
}

// New builds a sanctions checker registered under capName.
func New(capName string, entries []Entry, threshold float64) *Checker {
	return &Checker{capName: capName, entries: entries, threshold: threshold}
}

func (c *Checker) Name() string { return c.capName }

// Invoke screens the request subject. A hit yields one Verified finding per
// match carrying the similarity score; a clean screen yields one Sourced
// clear finding naming the lists checked.
func (c *Checker) Invoke(_ context.Context, req capability.Request) (*capability.Result, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, &capability.Failure{Capability: c.capName, Kind: capability.FailRefused, Msg: "empty subject name"}
	}

	matches := Search(req.Subject, c.entries, c.threshold)
	if len(matches) == 0 {
		return &capability.Result{Findings: []ledger.Finding{{
			Capability:  c.capName,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicSanctions,
			Claim:       "No matches on consolidated screening list",
			Class:       ledger.Sourced,
			Polarity:    ledger.PolarityClear,
			SourceRef:   "list://consolidated-screening-list",
		}}}, nil
	}

	var findings []ledger.Finding
	for _, m := range matches {
		findings = append(findings, ledger.Finding{
			Capability:  c.capName,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicSanctions,
			Claim:       fmt.Sprintf("Screening list match: %s on %s (similarity %.2f)", m.Entry.Name, m.Entry.List, m.Score),
			Class:       ledger.Verified,
			Polarity:    ledger.PolarityAdverse,
			SourceRef:   "list://" + strings.ToLower(strings.ReplaceAll(m.Entry.List, " ", "-")),
			Quote:       fmt.Sprintf("%s; programs: %s; %s", m.Entry.Name, strings.Join(m.Entry.Programs, ", "), m.Entry.Remarks),
			MatchScore:  m.Score,
		})
	}
	return &capability.Result{Findings: findings}, nil
}

// DefaultEntries is the bundled list snapshot used by the stub pipeline and
// tests. Names are synthetic.
var DefaultEntries = []Entry{
	{Name: "Viktor Alexeyevich Morozov", List: "OFAC SDN", Country: "Russia", Programs: []string{"UKRAINE-EO13662"}, Remarks: "designated 2022"},
	{Name: "Golden Crescent Trading FZE", List: "OFAC SDN", Country: "United Arab Emirates", Programs: []string{"IRAN"}, Remarks: "front company"},
	{Name: "Dmitri Volkov", List: "EU Consolidated", Country: "Belarus", Programs: []string{"BELARUS"}, Remarks: "listed official"},
	{Name: "Sahel Logistics SARL", List: "UN Consolidated", Country: "Mali", Programs: []string{"MALI-2374"}, Remarks: "transport network"},
	{Name: "Hyun-woo Pak", List: "OFAC SDN", Country: "North Korea", Programs: []string{"DPRK3"}, Remarks: "procurement agent"},
}
