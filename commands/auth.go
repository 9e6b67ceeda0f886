package commands

import (
	"strings"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmlutil"
)

func addAuth(r *grammar.Registry) {
	authRoot := grammar.Element("authenticate")
	creds := authRoot.Append(grammar.Element("credentials"))
	creds.Append(grammar.Element("username",
		grammar.WithText(appendText(func(p *params.Authenticate) *string { return &p.Username }))))
	creds.Append(grammar.Element("password",
		grammar.WithText(appendText(func(p *params.Authenticate) *string { return &p.Password }))))

	r.Add(&grammar.Command{
		Name:    "authenticate",
		PreAuth: true,
		New:     func() params.Params { return &params.Authenticate{} },
		Root:    authRoot,
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.Authenticate).Username == "" {
				return vmperr.Syntax(vmperr.WithMessage("authenticate requires a username"))
			}
			return nil
		},
		Handle: handleAuthenticate,
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusSyntaxError,
		},
	})

	r.Add(&grammar.Command{
		Name:    "get_version",
		PreAuth: true,
		New:     func() params.Params { return &params.GetVersion{} },
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			return domain.Result{Payload: "<version>" + Version + "</version>"}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK},
	})

	r.Add(&grammar.Command{
		Name: "help",
		New:  func() params.Params { return &params.Help{} },
		Root: grammar.Element("help",
			grammar.WithAttr("format", setAttr(func(p *params.Help) *string { return &p.Format }))),
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			return domain.Result{Payload: "<text>" + strings.Join(call.Commands, "\n") + "</text>"}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK},
	})
}

func handleAuthenticate(call *domain.Call, p params.Params) domain.Result {
	q := p.(*params.Authenticate)
	if call.Creds == nil {
		return domain.Result{Code: -1}
	}
	id, err := call.Creds.Verify(q.Username, q.Password)
	if err != nil {
		return domain.Result{Code: -1}
	}
	if id == nil {
		return domain.Result{Code: 1, StatusText: "Authentication failed"}
	}
	payload := "<role>" + xmlutil.EscapeText(id.Role) + "</role>" +
		"<timezone>" + xmlutil.EscapeText(id.Timezone) + "</timezone>"
	return domain.Result{Identity: id, Payload: payload}
}
