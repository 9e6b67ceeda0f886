package commands

import (
	"strconv"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmltok"
	"github.com/openvmd/vmp/xmlutil"
)

func addReports(r *grammar.Registry) {
	r.Add(&grammar.Command{
		Name: "import_report",
		New:  func() params.Params { return &params.ImportReport{} },
		Root: grammar.Element("import_report",
			grammar.WithAttr("task_id", setAttr(func(p *params.ImportReport) *string { return &p.TaskID }))),
		NewDelegate: func(p params.Params) grammar.Delegate {
			return &reportDelegate{p: p.(*params.ImportReport)}
		},
		Required: func(p params.Params) *vmperr.Error {
			q := p.(*params.ImportReport)
			if q.TaskID == "" {
				return vmperr.Syntax(vmperr.WithMessage("import_report requires a task_id attribute"))
			}
			if q.Invalid != "" {
				return vmperr.Syntax(vmperr.WithMessage(q.Invalid))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.ImportReport)
			if _, ok := call.Store.Task(q.TaskID); !ok {
				return domain.Result{Code: 1, StatusText: "Failed to find task"}
			}
			rep := call.Store.CreateReport(q.TaskID, q.ScanStart, q.Hosts)
			call.Store.SetTaskStatus(q.TaskID, domain.TaskStatusDone)
			return domain.Result{Code: 0, ID: rep.ID}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOKCreated,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "get_reports",
		New:  func() params.Params { return &params.GetReports{} },
		Root: grammar.Element("get_reports",
			grammar.WithAttr("report_id", setAttr(func(p *params.GetReports) *string { return &p.ReportID }))),
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.GetReports)
			if q.ReportID != "" {
				rep, ok := call.Store.Report(q.ReportID)
				if !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find report"}
				}
				return domain.Result{Code: 0, Payload: reportXML(rep)}
			}
			var payload string
			for _, rep := range call.Store.Reports() {
				payload += reportXML(rep)
			}
			return domain.Result{Code: 0, Payload: payload}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "delete_report",
		New:  func() params.Params { return &params.DeleteReport{} },
		Root: grammar.Element("delete_report",
			grammar.WithAttr("report_id", setAttr(func(p *params.DeleteReport) *string { return &p.ReportID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.DeleteReport).ReportID == "" {
				return vmperr.Syntax(vmperr.WithMessage("delete_report requires a report_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			if !call.Store.DeleteReport(p.(*params.DeleteReport).ReportID) {
				return domain.Result{Code: 1, StatusText: "Failed to find report"}
			}
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})
}

// reportPos is the report-import delegate's private position in the
// nested report/host/result tree.
type reportPos int

const (
	rpTop reportPos = iota
	rpReport
	rpHost
	rpResult
)

// reportDelegate parses the <import_report> sub-grammar, a bulk
// host/result/detail tree too deep for the flat command grammar. It
// keeps a private position enumeration and reuses the engine's skip
// primitive for unknown children. Structural problems are recorded in
// the arm and reported at dispatch, not treated as grammar errors.
type reportDelegate struct {
	p    *params.ImportReport
	skip grammar.Skip
	pos  reportPos
	text *string
}

func (d *reportDelegate) Start(name string, attrs []xmltok.Attr) error {
	if d.skip.Active() {
		d.skip.Enter()
		return nil
	}
	switch {
	case d.pos == rpTop && name == "report":
		if v, ok := xmltok.AttrValue(attrs, "scan_start"); ok {
			d.p.ScanStart = v
		}
		d.pos = rpReport
	case d.pos == rpReport && name == "host":
		d.p.Hosts = append(d.p.Hosts, params.ReportHost{})
		d.pos = rpHost
	case d.pos == rpHost && name == "ip":
		d.text = &d.lastHost().IP
	case d.pos == rpHost && name == "result":
		h := d.lastHost()
		h.Results = append(h.Results, params.ReportResult{})
		d.pos = rpResult
	case d.pos == rpResult && name == "port":
		d.text = &d.lastResult().Port
	case d.pos == rpResult && name == "severity":
		d.text = &d.lastResult().Severity
	case d.pos == rpResult && name == "description":
		d.text = &d.lastResult().Description
	default:
		d.skip.Begin()
	}
	return nil
}

func (d *reportDelegate) Text(data []byte) error {
	if d.skip.Active() || d.text == nil {
		return nil
	}
	*d.text += string(data)
	return nil
}

func (d *reportDelegate) End(name string) error {
	if d.skip.Active() {
		d.skip.Leave()
		return nil
	}
	d.text = nil
	switch {
	case d.pos == rpResult && name == "result":
		d.pos = rpHost
	case d.pos == rpHost && name == "host":
		if d.lastHost().IP == "" && d.p.Invalid == "" {
			d.p.Invalid = "report host requires an ip"
		}
		d.pos = rpReport
	case d.pos == rpReport && name == "report":
		d.pos = rpTop
	}
	return nil
}

func (d *reportDelegate) lastHost() *params.ReportHost {
	return &d.p.Hosts[len(d.p.Hosts)-1]
}

func (d *reportDelegate) lastResult() *params.ReportResult {
	h := d.lastHost()
	return &h.Results[len(h.Results)-1]
}

func reportXML(rep domain.Report) string {
	s := `<report id="` + xmlutil.EscapeAttr(rep.ID) + `">` +
		`<task id="` + xmlutil.EscapeAttr(rep.TaskID) + `"/>`
	if rep.ScanStart != "" {
		s += "<scan_start>" + xmlutil.EscapeText(rep.ScanStart) + "</scan_start>"
	}
	s += "<result_count>" + strconv.Itoa(reportResultCount(rep)) + "</result_count>"
	for _, h := range rep.Hosts {
		s += "<host><ip>" + xmlutil.EscapeText(h.IP) + "</ip>"
		for _, res := range h.Results {
			s += "<result>" +
				"<port>" + xmlutil.EscapeText(res.Port) + "</port>" +
				"<severity>" + xmlutil.EscapeText(res.Severity) + "</severity>" +
				"<description>" + xmlutil.EscapeText(res.Description) + "</description>" +
				"</result>"
		}
		s += "</host>"
	}
	return s + "</report>"
}

func reportResultCount(rep domain.Report) (n int) {
	for _, h := range rep.Hosts {
		n += len(h.Results)
	}
	return n
}
