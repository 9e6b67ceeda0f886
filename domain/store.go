package domain

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/openvmd/vmp/params"
)

// Task lifecycle status values.
const (
	TaskStatusNew       = "New"
	TaskStatusRequested = "Requested"
	TaskStatusRunning   = "Running"
	TaskStatusStopped   = "Stopped"
	TaskStatusDone      = "Done"
)

// Task is a scan task.
type Task struct {
	ID       string
	Name     string
	Comment  string
	TargetID string
	Status   string
}

// Target is a scan target.
type Target struct {
	ID           string
	Name         string
	Comment      string
	Hosts        string
	ExcludeHosts string
	PortListID   string
	PortRange    string
	CredentialID string
}

// Credential is a stored login credential.
type Credential struct {
	ID      string
	Name    string
	Comment string
	Login   string
	Type    string

	password string
}

// PortList is a named list of port ranges.
type PortList struct {
	ID      string
	Name    string
	Comment string
	Ranges  []params.PortRange
}

// Report is an imported or produced scan report.
type Report struct {
	ID        string
	TaskID    string
	ScanStart string
	Hosts     []params.ReportHost
}

// Store is the in-memory entity store behind the domain operations.
// It is shared between connections and safe for concurrent use; the
// engine itself remains single-threaded per connection.
type Store struct {
	mu          sync.RWMutex
	tasks       map[string]Task
	targets     map[string]Target
	credentials map[string]Credential
	portLists   map[string]PortList
	reports     map[string]Report
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		tasks:       map[string]Task{},
		targets:     map[string]Target{},
		credentials: map[string]Credential{},
		portLists:   map[string]PortList{},
		reports:     map[string]Report{},
	}
}

func (s *Store) CreateTask(name, comment, targetID string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Task{ID: uuid.NewString(), Name: name, Comment: comment, TargetID: targetID, Status: TaskStatusNew}
	s.tasks[t.ID] = t
	return t
}

func (s *Store) Task(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) ModifyTask(id, name, comment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if name != "" {
		t.Name = name
	}
	if comment != "" {
		t.Comment = comment
	}
	s.tasks[id] = t
	return true
}

func (s *Store) DeleteTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// SetTaskStatus updates a task's lifecycle status, reporting whether
// the task exists.
func (s *Store) SetTaskStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.Status = status
	s.tasks[id] = t
	return true
}

func (s *Store) CreateTarget(t Target) Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	s.targets[t.ID] = t
	return t
}

func (s *Store) Target(id string) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	return t, ok
}

func (s *Store) Targets() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteTarget removes a target unless a task still references it, in
// which case it reports in-use.
func (s *Store) DeleteTarget(id string) (deleted, inUse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[id]; !ok {
		return false, false
	}
	for _, t := range s.tasks {
		if t.TargetID == id {
			return false, true
		}
	}
	delete(s.targets, id)
	return true, false
}

func (s *Store) CreateCredential(name, comment, login, password, typ string) Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Credential{ID: uuid.NewString(), Name: name, Comment: comment, Login: login, Type: typ, password: password}
	s.credentials[c.ID] = c
	return c
}

func (s *Store) Credential(id string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[id]
	return c, ok
}

func (s *Store) Credentials() []Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Credential, 0, len(s.credentials))
	for _, c := range s.credentials {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) DeleteCredential(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[id]; !ok {
		return false
	}
	delete(s.credentials, id)
	return true
}

func (s *Store) CreatePortList(name, comment string, ranges []params.PortRange) PortList {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl := PortList{ID: uuid.NewString(), Name: name, Comment: comment, Ranges: ranges}
	s.portLists[pl.ID] = pl
	return pl
}

func (s *Store) PortList(id string) (PortList, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pl, ok := s.portLists[id]
	return pl, ok
}

func (s *Store) PortLists() []PortList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PortList, 0, len(s.portLists))
	for _, pl := range s.portLists {
		out = append(out, pl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) DeletePortList(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portLists[id]; !ok {
		return false
	}
	delete(s.portLists, id)
	return true
}

func (s *Store) CreateReport(taskID, scanStart string, hosts []params.ReportHost) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Report{ID: uuid.NewString(), TaskID: taskID, ScanStart: scanStart, Hosts: hosts}
	s.reports[r.ID] = r
	return r
}

func (s *Store) Report(id string) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	return r, ok
}

func (s *Store) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) DeleteReport(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return false
	}
	delete(s.reports, id)
	return true
}
