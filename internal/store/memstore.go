package store

import (
	"fmt"
	"sync"
)

// MemStore is the in-memory Store twin, used by tests and the stub pipeline.
type MemStore struct {
	mu sync.Mutex

	nextCase     int64
	nextDecision int64

	cases       map[int64]*Case
	byClientID  map[string]int64
	findings    map[int64][]memFinding
	findingIDs  map[string]bool
	checkpoints map[int64]map[string][]byte
	decisions   map[int64][]*Decision
	sessions    map[int64]string
}

type memFinding struct {
	id      string
	payload []byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nextCase:     1,
		nextDecision: 1,
		cases:        map[int64]*Case{},
		byClientID:   map[string]int64{},
		findings:     map[int64][]memFinding{},
		findingIDs:   map[string]bool{},
		checkpoints:  map[int64]map[string][]byte{},
		decisions:    map[int64][]*Decision{},
		sessions:     map[int64]string{},
	}
}

func (m *MemStore) CreateCase(c *Case) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byClientID[c.ClientID]; dup {
		return 0, fmt.Errorf("create case: client_id %q already exists", c.ClientID)
	}
	now := nowUTC()
	cp := *c
	cp.ID = m.nextCase
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.nextCase++
	m.cases[cp.ID] = &cp
	m.byClientID[cp.ClientID] = cp.ID
	*c = cp
	return cp.ID, nil
}

func (m *MemStore) GetCase(caseID int64) (*Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemStore) GetCaseByClientID(clientID string) (*Case, error) {
	m.mu.Lock()
	id, ok := m.byClientID[clientID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.GetCase(id)
}

func (m *MemStore) ListCases() ([]*Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Case, 0, len(m.cases))
	for id := int64(1); id < m.nextCase; id++ {
		if c, ok := m.cases[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) UpdateCaseStage(caseID int64, stage, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return fmt.Errorf("update case stage: no case %d", caseID)
	}
	c.Stage = stage
	c.Status = status
	c.UpdatedAt = nowUTC()
	return nil
}

func (m *MemStore) UpdateCaseRisk(caseID int64, score int, band string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return fmt.Errorf("update case risk: no case %d", caseID)
	}
	c.RiskScore = score
	c.RiskBand = band
	c.UpdatedAt = nowUTC()
	return nil
}

func (m *MemStore) UpdateCaseOutcome(caseID int64, grade, decision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return fmt.Errorf("update case outcome: no case %d", caseID)
	}
	c.Grade = grade
	c.Decision = decision
	c.UpdatedAt = nowUTC()
	return nil
}

func (m *MemStore) AppendFinding(caseID int64, findingID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findingIDs[findingID] {
		return fmt.Errorf("append finding: duplicate finding_id %q", findingID)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.findings[caseID] = append(m.findings[caseID], memFinding{id: findingID, payload: cp})
	m.findingIDs[findingID] = true
	return nil
}

func (m *MemStore) ListFindings(caseID int64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.findings[caseID]
	out := make([][]byte, 0, len(rows))
	for _, r := range rows {
		cp := make([]byte, len(r.payload))
		copy(cp, r.payload)
		out = append(out, cp)
	}
	return out, nil
}

func (m *MemStore) SaveCheckpoint(caseID int64, stage string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkpoints[caseID] == nil {
		m.checkpoints[caseID] = map[string][]byte{}
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.checkpoints[caseID][stage] = cp
	return nil
}

func (m *MemStore) GetCheckpoint(caseID int64, stage string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.checkpoints[caseID][stage]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, nil
}

func (m *MemStore) AppendDecision(d *Decision) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	cp.ID = m.nextDecision
	cp.CreatedAt = nowUTC()
	m.nextDecision++
	m.decisions[cp.CaseID] = append(m.decisions[cp.CaseID], &cp)
	*d = cp
	return cp.ID, nil
}

func (m *MemStore) ListDecisions(caseID int64) ([]*Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.decisions[caseID]
	out := make([]*Decision, 0, len(rows))
	for _, d := range rows {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemStore) OpenSession(caseID int64, officer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.sessions[caseID]; held {
		return ErrSessionHeld
	}
	m.sessions[caseID] = officer
	return nil
}

func (m *MemStore) CloseSession(caseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, caseID)
	return nil
}

func (m *MemStore) SessionOfficer(caseID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[caseID], nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }
