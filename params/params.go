/*
Package params holds the per-command parameter records accumulated by
the protocol engine while a command's element subtree is being parsed.

Each command family has one arm type. An arm is created empty when the
command's opening tag is seen, populated incrementally by attribute and
text bindings (text bindings append, since character data may arrive
split across tokenizer callbacks), and consumed by the dispatcher at
the command's closing tag. At most one arm is live per engine at any
time; the Params interface is sealed so the set of arms is closed.
*/
package params

// Params is the sealed interface implemented by every command
// parameter arm.
type Params interface {
	arm()
}

// Authenticate carries the credentials collected by <authenticate>.
type Authenticate struct {
	Username string
	Password string
}

// GetVersion has no parameters.
type GetVersion struct{}

// Help carries the optional format selector of <help>.
type Help struct {
	Format string
}

// CreateTask accumulates <create_task> fields.
type CreateTask struct {
	Name     string
	Comment  string
	TargetID string
}

// ModifyTask accumulates <modify_task> fields.
type ModifyTask struct {
	TaskID  string
	Name    string
	Comment string
}

// DeleteTask accumulates <delete_task> fields.
type DeleteTask struct {
	TaskID string
}

// GetTasks accumulates <get_tasks> filters.
type GetTasks struct {
	TaskID string
}

// StartTask accumulates <start_task> fields.
type StartTask struct {
	TaskID string
}

// StopTask accumulates <stop_task> fields.
type StopTask struct {
	TaskID string
}

// CreateTarget accumulates <create_target> fields.
type CreateTarget struct {
	Name         string
	Comment      string
	Hosts        string
	ExcludeHosts string
	PortListID   string
	PortRange    string
	CredentialID string
}

// DeleteTarget accumulates <delete_target> fields.
type DeleteTarget struct {
	TargetID string
}

// GetTargets accumulates <get_targets> filters.
type GetTargets struct {
	TargetID string
}

// CreateCredential accumulates <create_credential> fields.
type CreateCredential struct {
	Name     string
	Comment  string
	Login    string
	Password string
	Type     string
}

// DeleteCredential accumulates <delete_credential> fields.
type DeleteCredential struct {
	CredentialID string
}

// GetCredentials accumulates <get_credentials> filters.
type GetCredentials struct {
	CredentialID string
}

// PortRange is one nested <port_range> entry of <create_port_list>.
type PortRange struct {
	Start    int
	End      int
	Protocol string
}

// CreatePortList accumulates <create_port_list> fields. Ranges is
// populated by the port-range sub-grammar delegate; Invalid is set by
// the delegate when a range was malformed, for dispatch-time
// validation.
type CreatePortList struct {
	Name    string
	Comment string
	Ranges  []PortRange
	Invalid string
}

// DeletePortList accumulates <delete_port_list> fields.
type DeletePortList struct {
	PortListID string
}

// GetPortLists accumulates <get_port_lists> filters.
type GetPortLists struct {
	PortListID string
}

// GetReports accumulates <get_reports> filters.
type GetReports struct {
	ReportID string
}

// DeleteReport accumulates <delete_report> fields.
type DeleteReport struct {
	ReportID string
}

// ReportResult is one scan result inside an imported report host.
type ReportResult struct {
	Port        string
	Severity    string
	Description string
}

// ReportHost is one host subtree of an imported report.
type ReportHost struct {
	IP      string
	Results []ReportResult
}

// ImportReport accumulates <import_report> fields. The host/result
// tree is populated by the report-import sub-grammar delegate;
// Invalid records the first structural problem for dispatch-time
// validation.
type ImportReport struct {
	TaskID    string
	ScanStart string
	Hosts     []ReportHost
	Invalid   string
}

// WizardParam is one nested name/value pair of <run_wizard>.
type WizardParam struct {
	Name  string
	Value string
}

// RunWizard accumulates <run_wizard> fields.
type RunWizard struct {
	Name   string
	Params []WizardParam
}

func (*Authenticate) arm()     {}
func (*GetVersion) arm()       {}
func (*Help) arm()             {}
func (*CreateTask) arm()       {}
func (*ModifyTask) arm()       {}
func (*DeleteTask) arm()       {}
func (*GetTasks) arm()         {}
func (*StartTask) arm()        {}
func (*StopTask) arm()         {}
func (*CreateTarget) arm()     {}
func (*DeleteTarget) arm()     {}
func (*GetTargets) arm()       {}
func (*CreateCredential) arm() {}
func (*DeleteCredential) arm() {}
func (*GetCredentials) arm()   {}
func (*CreatePortList) arm()   {}
func (*DeletePortList) arm()   {}
func (*GetPortLists) arm()     {}
func (*GetReports) arm()       {}
func (*DeleteReport) arm()     {}
func (*ImportReport) arm()     {}
func (*RunWizard) arm()        {}
