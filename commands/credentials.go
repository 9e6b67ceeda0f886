package commands

import (
	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmlutil"
)

func addCredentials(r *grammar.Registry) {
	createRoot := grammar.Element("create_credential")
	createRoot.Append(grammar.Element("name",
		grammar.WithText(appendText(func(p *params.CreateCredential) *string { return &p.Name }))))
	createRoot.Append(grammar.Element("comment",
		grammar.WithText(appendText(func(p *params.CreateCredential) *string { return &p.Comment }))))
	createRoot.Append(grammar.Element("login",
		grammar.WithText(appendText(func(p *params.CreateCredential) *string { return &p.Login }))))
	createRoot.Append(grammar.Element("password",
		grammar.WithText(appendText(func(p *params.CreateCredential) *string { return &p.Password }))))
	createRoot.Append(grammar.Element("type",
		grammar.WithText(appendText(func(p *params.CreateCredential) *string { return &p.Type }))))

	r.Add(&grammar.Command{
		Name: "create_credential",
		New:  func() params.Params { return &params.CreateCredential{} },
		Root: createRoot,
		Required: func(p params.Params) *vmperr.Error {
			q := p.(*params.CreateCredential)
			if q.Name == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_credential requires a name"))
			}
			if q.Login == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_credential requires a login"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.CreateCredential)
			c := call.Store.CreateCredential(q.Name, q.Comment, q.Login, q.Password, q.Type)
			return domain.Result{Code: 0, ID: c.ID}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOKCreated},
	})

	r.Add(&grammar.Command{
		Name: "delete_credential",
		New:  func() params.Params { return &params.DeleteCredential{} },
		Root: grammar.Element("delete_credential",
			grammar.WithAttr("credential_id", setAttr(func(p *params.DeleteCredential) *string { return &p.CredentialID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.DeleteCredential).CredentialID == "" {
				return vmperr.Syntax(vmperr.WithMessage("delete_credential requires a credential_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			if !call.Store.DeleteCredential(p.(*params.DeleteCredential).CredentialID) {
				return domain.Result{Code: 1, StatusText: "Failed to find credential"}
			}
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "get_credentials",
		New:  func() params.Params { return &params.GetCredentials{} },
		Root: grammar.Element("get_credentials",
			grammar.WithAttr("credential_id", setAttr(func(p *params.GetCredentials) *string { return &p.CredentialID }))),
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.GetCredentials)
			if q.CredentialID != "" {
				c, ok := call.Store.Credential(q.CredentialID)
				if !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find credential"}
				}
				return domain.Result{Code: 0, Payload: credentialXML(c)}
			}
			var payload string
			for _, c := range call.Store.Credentials() {
				payload += credentialXML(c)
			}
			return domain.Result{Code: 0, Payload: payload}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})
}

// credentialXML never includes the stored secret.
func credentialXML(c domain.Credential) string {
	s := `<credential id="` + xmlutil.EscapeAttr(c.ID) + `">` +
		"<name>" + xmlutil.EscapeText(c.Name) + "</name>" +
		"<login>" + xmlutil.EscapeText(c.Login) + "</login>"
	if c.Comment != "" {
		s += "<comment>" + xmlutil.EscapeText(c.Comment) + "</comment>"
	}
	if c.Type != "" {
		s += "<type>" + xmlutil.EscapeText(c.Type) + "</type>"
	}
	return s + "</credential>"
}
