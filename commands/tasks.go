package commands

import (
	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmlutil"
)

func addTasks(r *grammar.Registry) {
	createRoot := grammar.Element("create_task")
	createRoot.Append(grammar.Element("name",
		grammar.WithText(appendText(func(p *params.CreateTask) *string { return &p.Name }))))
	createRoot.Append(grammar.Element("comment",
		grammar.WithText(appendText(func(p *params.CreateTask) *string { return &p.Comment }))))
	createRoot.Append(grammar.Element("target",
		grammar.WithAttr("id", setAttr(func(p *params.CreateTask) *string { return &p.TargetID }))))

	r.Add(&grammar.Command{
		Name: "create_task",
		New:  func() params.Params { return &params.CreateTask{} },
		Root: createRoot,
		Required: func(p params.Params) *vmperr.Error {
			q := p.(*params.CreateTask)
			if q.Name == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_task requires a name"))
			}
			if q.TargetID == "" {
				return vmperr.Syntax(vmperr.WithMessage("create_task requires a target id"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.CreateTask)
			if _, ok := call.Store.Target(q.TargetID); !ok {
				return domain.Result{Code: 1, StatusText: "Failed to find target"}
			}
			t := call.Store.CreateTask(q.Name, q.Comment, q.TargetID)
			return domain.Result{Code: 0, ID: t.ID}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOKCreated,
			1: vmperr.StatusMissingResource,
		},
	})

	modifyRoot := grammar.Element("modify_task",
		grammar.WithAttr("task_id", setAttr(func(p *params.ModifyTask) *string { return &p.TaskID })))
	modifyRoot.Append(grammar.Element("name",
		grammar.WithText(appendText(func(p *params.ModifyTask) *string { return &p.Name }))))
	modifyRoot.Append(grammar.Element("comment",
		grammar.WithText(appendText(func(p *params.ModifyTask) *string { return &p.Comment }))))

	r.Add(&grammar.Command{
		Name: "modify_task",
		New:  func() params.Params { return &params.ModifyTask{} },
		Root: modifyRoot,
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.ModifyTask).TaskID == "" {
				return vmperr.Syntax(vmperr.WithMessage("modify_task requires a task_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.ModifyTask)
			if !call.Store.ModifyTask(q.TaskID, q.Name, q.Comment) {
				return domain.Result{Code: 1, StatusText: "Failed to find task"}
			}
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "delete_task",
		New:  func() params.Params { return &params.DeleteTask{} },
		Root: grammar.Element("delete_task",
			grammar.WithAttr("task_id", setAttr(func(p *params.DeleteTask) *string { return &p.TaskID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.DeleteTask).TaskID == "" {
				return vmperr.Syntax(vmperr.WithMessage("delete_task requires a task_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			if !call.Store.DeleteTask(p.(*params.DeleteTask).TaskID) {
				return domain.Result{Code: 1, StatusText: "Failed to find task"}
			}
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "get_tasks",
		New:  func() params.Params { return &params.GetTasks{} },
		Root: grammar.Element("get_tasks",
			grammar.WithAttr("task_id", setAttr(func(p *params.GetTasks) *string { return &p.TaskID }))),
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.GetTasks)
			if q.TaskID != "" {
				t, ok := call.Store.Task(q.TaskID)
				if !ok {
					return domain.Result{Code: 1, StatusText: "Failed to find task"}
				}
				return domain.Result{Code: 0, Payload: taskXML(t)}
			}
			var payload string
			for _, t := range call.Store.Tasks() {
				payload += taskXML(t)
			}
			return domain.Result{Code: 0, Payload: payload}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOK,
			1: vmperr.StatusMissingResource,
		},
	})

	r.Add(&grammar.Command{
		Name: "start_task",
		New:  func() params.Params { return &params.StartTask{} },
		Root: grammar.Element("start_task",
			grammar.WithAttr("task_id", setAttr(func(p *params.StartTask) *string { return &p.TaskID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.StartTask).TaskID == "" {
				return vmperr.Syntax(vmperr.WithMessage("start_task requires a task_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.StartTask)
			t, ok := call.Store.Task(q.TaskID)
			if !ok {
				return domain.Result{Code: 1, StatusText: "Failed to find task"}
			}
			if t.Status == domain.TaskStatusRequested || t.Status == domain.TaskStatusRunning {
				return domain.Result{Code: 2, StatusText: "Task is active"}
			}
			call.Store.SetTaskStatus(q.TaskID, domain.TaskStatusRequested)
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOKRequested,
			1: vmperr.StatusMissingResource,
			2: vmperr.StatusUnavailable,
		},
	})

	r.Add(&grammar.Command{
		Name: "stop_task",
		New:  func() params.Params { return &params.StopTask{} },
		Root: grammar.Element("stop_task",
			grammar.WithAttr("task_id", setAttr(func(p *params.StopTask) *string { return &p.TaskID }))),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.StopTask).TaskID == "" {
				return vmperr.Syntax(vmperr.WithMessage("stop_task requires a task_id attribute"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.StopTask)
			t, ok := call.Store.Task(q.TaskID)
			if !ok {
				return domain.Result{Code: 1, StatusText: "Failed to find task"}
			}
			if t.Status != domain.TaskStatusRequested && t.Status != domain.TaskStatusRunning {
				return domain.Result{Code: 2, StatusText: "Task is not active"}
			}
			call.Store.SetTaskStatus(q.TaskID, domain.TaskStatusStopped)
			return domain.Result{Code: 0}
		},
		Statuses: map[int]vmperr.Status{
			0: vmperr.StatusOKRequested,
			1: vmperr.StatusMissingResource,
			2: vmperr.StatusUnavailable,
		},
	})
}

func taskXML(t domain.Task) string {
	return `<task id="` + xmlutil.EscapeAttr(t.ID) + `">` +
		"<name>" + xmlutil.EscapeText(t.Name) + "</name>" +
		"<comment>" + xmlutil.EscapeText(t.Comment) + "</comment>" +
		`<target id="` + xmlutil.EscapeAttr(t.TargetID) + `"/>` +
		"<status>" + xmlutil.EscapeText(t.Status) + "</status>" +
		"</task>"
}
