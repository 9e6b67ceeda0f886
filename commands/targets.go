package commands

import (
	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmlutil"
)

func addTargets(r *grammar.Registry) {
	createRoot := grammar.Element("create_target")
	createRoot.Append(grammar.Element("name",
		grammar.WithText(appendText(func(p *params.CreateTarget) *string { return &p.Name }))))
	createRoot.Append(grammar.Element("comment",
		grammar.WithText(appendText(func(p *params.CreateTarget) *string { return &p.Comment }))))
	createRoot.Append(grammar.Element("hosts",
		grammar.WithText(appendText(func(p *params.CreateTarget) *string { return &p.Hosts }))))
	createRoot.Append(grammar.Element("exclude_hosts",
		grammar.WithText(appendText(func(p *params.CreateTarget) *string { return &p.ExcludeHosts }))))
	createRoot.Append(grammar.Element("port_list",
		grammar.WithAttr("id", setAttr(func(p *params.CreateTarget) *string { return &p.PortListID }))))
	createRoot.Append(grammar.Element("port_range",
		grammar.WithText(appendText(func(p *params.CreateTarget) *string { return &p.PortRange }))))
	createRoot.Append(grammar.Element("ssh_credential",
		grammar.WithAttr("id", setAttr(func(p *params.CreateTarget) *string { return &p.CredentialID }))))

	r.Add(&grammar.Command{
		Name: "create_target",
		New:  func() params.Params { return &params.CreateTarget{} },
		Root: createRoot,
		Required: func(p params.Params) *vmperr.Error {
			q := p.(*params.CreateTarget)
			if q.Name == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_target requires a name"))
			}
			if q.Hosts == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_target requires hosts"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.CreateTarget)
			if q.PortListID != "" {
				if _, ok := call.Store.PortList(q.PortListID); !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find port_list"}
				}
			}
			if q.CredentialID != "" {
				if _, ok := call.Store.Credential(q.CredentialID); !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find credential"}
				}
			}
			t := call.Store.CreateTarget(domain.Target{
				Name:         q.Name,
				Comment:      q.Comment,
				Hosts:        q.Hosts,
				ExcludeHosts: q.ExcludeHosts,
				PortListID:   q.PortListID,
				PortRange:    q.PortRange,
				CredentialID: q.CredentialID,
			})
			return domain.Result{Code: 0, ID: t.ID}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOKCreated,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "delete_target",
		New:  func() params.Params { return &params.DeleteTarget{} },
		Root: grammar.Element("delete_target",
			grammar.WithAttr("target_id", setAttr(func(p *params.DeleteTarget) *string { return &p.TargetID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.DeleteTarget).TargetID == "" {
				return vmperr.Syntax(vmperr.WithMessage("delete_target requires a target_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			deleted, inUse := call.Store.DeleteTarget(p.(*params.DeleteTarget).TargetID)
			switch {
			case inUse:
				return domain.Result{Code: 2, StatusText: "Target is in use"}
			case !deleted:
				return domain.Result{Code: 1, StatusText: "Failed to find target"}
			}
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
			2: vmperr.StatusUnavailable,
		},
	})

	r.Add(&grammar.Command{
		Name: "get_targets",
		New:  func() params.Params { return &params.GetTargets{} },
		Root: grammar.Element("get_targets",
			grammar.WithAttr("target_id", setAttr(func(p *params.GetTargets) *string { return &p.TargetID }))),
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.GetTargets)
			if q.TargetID != "" {
				t, ok := call.Store.Target(q.TargetID)
				if !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find target"}
				}
				return domain.Result{Code: 0, Payload: targetXML(t)}
			}
			var payload string
			for _, t := range call.Store.Targets() {
				payload += targetXML(t)
			}
			return domain.Result{Code: 0, Payload: payload}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})
}

func targetXML(t domain.Target) string {
	s := `<target id="` + xmlutil.EscapeAttr(t.ID) + `">` +
		"<name>" + xmlutil.EscapeText(t.Name) + "</name>" +
		"<hosts>" + xmlutil.EscapeText(t.Hosts) + "</hosts>"
	if t.Comment != "" {
		s += "<comment>" + xmlutil.EscapeText(t.Comment) + "</comment>"
	}
	if t.ExcludeHosts != "" {
		s += "<exclude_hosts>" + xmlutil.EscapeText(t.ExcludeHosts) + "</exclude_hosts>"
	}
	if t.PortListID != "" {
		s += `<port_list id="` + xmlutil.EscapeAttr(t.PortListID) + `"/>`
	}
	return s + "</target>"
}
