package vmperr

// Option is an Error option function
type Option func(*Error)

func WithMessage(msg string) Option { return func(e *Error) { e.Message = msg } }
func WithStatus(s Status) Option    { return func(e *Error) { e.Status = s } }
func WithFatal() Option             { return func(e *Error) { e.Fatal = true } }
