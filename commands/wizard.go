package commands

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmlutil"
)

var (
	xpCreateTargetResp = xpath.MustCompile(`/create_target_response`)
	xpCreateTaskResp   = xpath.MustCompile(`/create_task_response`)
	xpStartTaskResp    = xpath.MustCompile(`/start_task_response`)
)

func addWizard(r *grammar.Registry) {
	wizRoot := grammar.Element("run_wizard")
	wizRoot.Append(grammar.Element("name",
		grammar.WithText(appendText(func(p *params.RunWizard) *string { return &p.Name }))))
	paramsNode := wizRoot.Append(grammar.Element("params"))
	param := paramsNode.Append(grammar.Element("param",
		grammar.WithEnter(func(p params.Params) {
			q := p.(*params.RunWizard)
			q.Params = append(q.Params, params.WizardParam{})
		})))
	param.Append(grammar.Element("name",
		grammar.WithText(func(p params.Params, v string) {
			q := p.(*params.RunWizard)
			q.Params[len(q.Params)-1].Name += v
		})))
	param.Append(grammar.Element("value",
		grammar.WithText(func(p params.Params, v string) {
			q := p.(*params.RunWizard)
			q.Params[len(q.Params)-1].Value += v
		})))

	r.Add(&grammar.Command{
		Name: "run_wizard",
		New:  func() params.Params { return &params.RunWizard{} },
		Root: wizRoot,
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.RunWizard).Name == "" {
				return vmperr.Syntax(vmperr.WithMessage("run_wizard requires a name"))
			}
			return nil
		},
		Handle: handleRunWizard,
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOKRequested,
			1: vmperr.StatusMissingResource,
			2: vmperr.StatusSyntaxError,
		},
	})
}

// handleRunWizard executes a wizard as a fixed sequence of ordinary
// commands run through the engine's re-entrant invocation, reading
// each captured response document to chain created-resource IDs into
// the next step.
func handleRunWizard(call *domain.Call, p params.Params) domain.Result {
	q := p.(*params.RunWizard)
	if q.Name != "quick_scan_prep" {
		return domain.Result{Code: 1, StatusText: "Failed to find wizard"}
	}
	name := wizardParam(q, "name")
	hosts := wizardParam(q, "hosts")
	if name == "" || hosts == "" {
		return domain.Result{Code: 2, StatusText: "quick_scan_prep requires name and hosts params"}
	}

	targetID, res := runWizardStep(call,
		"<create_target><name>"+xmlutil.EscapeText(name+" target")+"</name>"+
			"<hosts>"+xmlutil.EscapeText(hosts)+"</hosts></create_target>",
		xpCreateTargetResp, "201")
	if res != nil {
		return *res
	}
	taskID, res := runWizardStep(call,
		"<create_task><name>"+xmlutil.EscapeText(name)+"</name>"+
			`<target id="`+xmlutil.EscapeAttr(targetID)+`"/></create_task>`,
		xpCreateTaskResp, "201")
	if res != nil {
		return *res
	}
	if _, res = runWizardStep(call,
		`<start_task task_id="`+xmlutil.EscapeAttr(taskID)+`"/>`,
		xpStartTaskResp, "202"); res != nil {
		return *res
	}

	payload := `<wizard><target id="` + xmlutil.EscapeAttr(targetID) + `"/>` +
		`<task id="` + xmlutil.EscapeAttr(taskID) + `"/></wizard>`
	return domain.Result{Code: 0, Payload: payload}
}

// runWizardStep runs one nested command and extracts the id attribute
// from its response element, insisting on the expected status code.
// A non-nil Result reports the failure to return from the wizard.
func runWizardStep(call *domain.Call, command string, respPath *xpath.Expr, wantStatus string) (string, *domain.Result) {
	out, err := call.Nested(command)
	if err != nil {
		return "", &domain.Result{Code: -1}
	}
	doc, err := xmlquery.Parse(strings.NewReader(out))
	if err != nil {
		return "", &domain.Result{Code: -1}
	}
	resp := xmlquery.QuerySelector(doc, respPath)
	if resp == nil {
		return "", &domain.Result{Code: -1}
	}
	if got := resp.SelectAttr("status"); got != wantStatus {
		return "", &domain.Result{Code: 2, StatusText: "Wizard step failed: " + resp.SelectAttr("status_text")}
	}
	return resp.SelectAttr("id"), nil
}

func wizardParam(q *params.RunWizard, name string) string {
	for _, wp := range q.Params {
		if wp.Name == name {
			return wp.Value
		}
	}
	return ""
}
