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

func addPortLists(r *grammar.Registry) {
	r.Add(&grammar.Command{
		Name: "create_port_list",
		New:  func() params.Params { return &params.CreatePortList{} },
		NewDelegate: func(p params.Params) grammar.Delegate {
			return &portListDelegate{p: p.(*params.CreatePortList)}
		},
		Required: func(p params.Params) *vmperr.Error {
			q := p.(*params.CreatePortList)
			if q.Name == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_port_list requires a name"))
			}
			if q.Invalid != "" {
				return vmperr.Syntax(vmperr.WithMessage(q.Invalid))
			}
			if len(q.Ranges) == 0 {
				return vmperr.Syntax(vmperr.WithMessage("create_port_list requires at least one port_range"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.CreatePortList)
			pl := call.Store.CreatePortList(q.Name, q.Comment, q.Ranges)
			return domain.Result{Code: 0, ID: pl.ID}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOKCreated},
	})

	r.Add(&grammar.Command{
		Name: "delete_port_list",
		New:  func() params.Params { return &params.DeletePortList{} },
		Root: grammar.Element("delete_port_list",
			grammar.WithAttr("port_list_id", setAttr(func(p *params.DeletePortList) *string { return &p.PortListID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.DeletePortList).PortListID == "" {
				return vmperr.Syntax(vmperr.WithMessage("delete_port_list requires a port_list_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			if !call.Store.DeletePortList(p.(*params.DeletePortList).PortListID) {
				return domain.Result{Code: 1, StatusText: "Failed to find port_list"}
			}
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "get_port_lists",
		New:  func() params.Params { return &params.GetPortLists{} },
		Root: grammar.Element("get_port_lists",
			grammar.WithAttr("port_list_id", setAttr(func(p *params.GetPortLists) *string { return &p.PortListID }))),
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.GetPortLists)
			if q.PortListID != "" {
				pl, ok := call.Store.PortList(q.PortListID)
				if !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find port_list"}
				}
				return domain.Result{Code: 0, Payload: portListXML(pl)}
			}
			var payload string
			for _, pl := range call.Store.PortLists() {
				payload += portListXML(pl)
			}
			return domain.Result{Code: 0, Payload: payload}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})
}

// portListDelegate parses the <create_port_list> sub-grammar: scalar
// name and comment elements plus a repeated <port_range> list carried
// in attributes. It keeps its own skip episode for unknown children,
// and records the first malformed range for dispatch-time validation
// rather than failing the parse.
type portListDelegate struct {
	p    *params.CreatePortList
	skip grammar.Skip
	text *string
}

func (d *portListDelegate) Start(name string, attrs []xmltok.Attr) error {
	if d.skip.Active() {
		d.skip.Enter()
		return nil
	}
	switch name {
	case "name":
		d.text = &d.p.Name
	case "comment":
		d.text = &d.p.Comment
	case "port_range":
		d.addRange(attrs)
	default:
		d.skip.Begin()
	}
	return nil
}

func (d *portListDelegate) Text(data []byte) error {
	if d.skip.Active() || d.text == nil {
		return nil
	}
	*d.text += string(data)
	return nil
}

func (d *portListDelegate) End(name string) error {
	if d.skip.Active() {
		d.skip.Leave()
		return nil
	}
	d.text = nil
	return nil
}

func (d *portListDelegate) addRange(attrs []xmltok.Attr) {
	if d.p.Invalid != "" {
		return
	}
	startVal, _ := xmltok.AttrValue(attrs, "start")
	endVal, _ := xmltok.AttrValue(attrs, "end")
	proto, ok := xmltok.AttrValue(attrs, "type")
	if !ok {
		proto = "tcp"
	}
	start, err := strconv.Atoi(startVal)
	if err != nil {
		d.p.Invalid = "port_range start must be an integer"
		return
	}
	end := start
	if endVal != "" {
		if end, err = strconv.Atoi(endVal); err != nil {
			d.p.Invalid = "port_range end must be an integer"
			return
		}
	}
	if start < 1 || end > 65535 || end < start {
		d.p.Invalid = "port_range bounds out of order or out of range"
		return
	}
	d.p.Ranges = append(d.p.Ranges, params.PortRange{Start: start, End: end, Protocol: proto})
}

func portListXML(pl domain.PortList) string {
	s := `<port_list id="` + xmlutil.EscapeAttr(pl.ID) + `">` +
		"<name>" + xmlutil.EscapeText(pl.Name) + "</name>"
	if pl.Comment != "" {
		s += "<comment>" + xmlutil.EscapeText(pl.Comment) + "</comment>"
	}
	s += "<port_ranges>"
	for _, pr := range pl.Ranges {
		s += `<port_range start="` + strconv.Itoa(pr.Start) +
			`" end="` + strconv.Itoa(pr.End) +
			`" type="` + xmlutil.EscapeAttr(pr.Protocol) + `"/>`
	}
	return s + "</port_ranges></port_list>"
}
