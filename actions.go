package saasAuth

import (
	"context"
	"net/http"
)

// Route keys an Action by HTTP method and path. Path parameters use the
// {name} form.
type Route struct {
	Method string
	Path   string
}

// Request is the transport-neutral input of an Action. User and Session are
// filled by whoever resolved the caller's identity.
type Request struct {
	User      *User
	Session   *Session
	Body      map[string]any
	Params    map[string]string
	Headers   map[string]string
	IPAddress string
	UserAgent string
}

// Response is what an Action produced. A non-empty Redirect asks the
// transport to redirect with Status.
type Response struct {
	Status   int
	Body     any
	Redirect string
}

// Action handles one route.
type Action func(ctx context.Context, req *Request) Response

// ErrorBody is the JSON shape of every failed action.
type ErrorBody struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// MessageBody is returned by actions that have nothing else to say.
type MessageBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse renders err the way every action does.
func ErrorResponse(err error) Response {
	ee := AsError(err)
	status := ee.Kind.Status()
	return Response{Status: status, Body: ErrorBody{
		Error:   true,
		Code:    status,
		Reason:  ee.Code,
		Message: ee.Message,
	}}
}

func okResponse(body any) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Actions returns the handler table. The map is freshly built on each call.
func (e *Engine) Actions() map[Route]Action {
	return map[Route]Action{
		{http.MethodPost, "/login"}:                      e.actionLogin,
		{http.MethodPost, "/register"}:                   e.actionRegister,
		{http.MethodPost, "/forgot"}:                     e.actionForgot,
		{http.MethodPost, "/reset"}:                      e.actionReset,
		{http.MethodPost, "/refresh"}:                    e.actionRefresh,
		{http.MethodPost, "/logout"}:                     e.actionLogout,
		{http.MethodGet, "/user"}:                        e.actionGetUser,
		{http.MethodPost, "/user"}:                       e.actionUpdateUser,
		{http.MethodPost, "/user/validate/email"}:        e.actionRequestVerification,
		{http.MethodGet, "/user/validate/email/{token}"}: e.actionConfirmEmail,
		{http.MethodPost, "/user/two-factor"}:            e.actionBeginTwoFactor,
		{http.MethodPost, "/user/two-factor/confirm"}:    e.actionConfirmTwoFactor,
		{http.MethodPost, "/user/two-factor/disable"}:    e.actionDisableTwoFactor,
	}
}

// context carries the request's client details into ctx.
func (r *Request) context(ctx context.Context) context.Context {
	if r.IPAddress != "" {
		ctx = WithClientIP(ctx, r.IPAddress)
	}
	if r.UserAgent != "" {
		ctx = WithUserAgent(ctx, r.UserAgent)
	}
	return ctx
}

func (r *Request) client() Client {
	return Client{IP: r.IPAddress, UserAgent: r.UserAgent}
}

func (r *Request) str(key string) string {
	s, _ := r.Body[key].(string)
	return s
}

func (e *Engine) actionLogin(ctx context.Context, r *Request) Response {
	res, err := e.Login(r.context(ctx), LoginRequest{
		Username: r.str("username"),
		Password: r.str("password"),
		Code:     r.str("code"),
		Client:   r.client(),
	})
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(res)
}

func (e *Engine) actionRegister(ctx context.Context, r *Request) Response {
	meta, _ := r.Body["metadata"].(map[string]any)
	res, err := e.Register(r.context(ctx), RegisterRequest{
		Username: r.str("username"),
		Password: r.str("password"),
		Metadata: meta,
		Client:   r.client(),
	})
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(res)
}

func (e *Engine) actionForgot(ctx context.Context, r *Request) Response {
	res, err := e.Forgot(r.context(ctx), r.str("username"))
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(MessageBody{Message: res.Message})
}

func (e *Engine) actionReset(ctx context.Context, r *Request) Response {
	res, err := e.Reset(r.context(ctx), r.str("token"), r.str("password"), r.client())
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(res)
}

func (e *Engine) actionRefresh(ctx context.Context, r *Request) Response {
	if r.Session == nil {
		return ErrorResponse(ErrSessionRequired)
	}
	res, err := e.Refresh(r.context(ctx), r.Session.ID, r.User, r.client())
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(res)
}

func (e *Engine) actionLogout(ctx context.Context, r *Request) Response {
	if r.Session == nil {
		return ErrorResponse(ErrSessionRequired)
	}
	if err := e.Logout(r.context(ctx), r.Session.ID, r.User); err != nil {
		return ErrorResponse(err)
	}
	return okResponse(MessageBody{Message: "Logged out."})
}

func (e *Engine) actionGetUser(_ context.Context, r *Request) Response {
	if r.User == nil {
		return ErrorResponse(ErrUnauthenticated)
	}
	return okResponse(r.User.Sanitized())
}

func (e *Engine) actionUpdateUser(ctx context.Context, r *Request) Response {
	u, err := e.UpdateFields(r.context(ctx), r.User, r.Body)
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(u)
}

func (e *Engine) actionRequestVerification(ctx context.Context, r *Request) Response {
	res, err := e.RequestEmailVerification(r.context(ctx), r.User)
	if err != nil {
		return ErrorResponse(err)
	}
	return okResponse(MessageBody{Message: res.Message})
}

func (e *Engine) actionConfirmEmail(ctx context.Context, r *Request) Response {
	target, err := e.ConfirmEmailToken(r.context(ctx), r.Params["token"])
	if err != nil {
		return ErrorResponse(err)
	}
	return Response{Status: http.StatusFound, Redirect: target}
}

func (e *Engine) actionBeginTwoFactor(ctx context.Context, r *Request) Response {
	setup, err := e.BeginTwoFactor(r.context(ctx), r.User, r.client())
	if err != nil {
		return ErrorResponse(err)
	}
	if !e.config.TwoFactor.ExposeSecret {
		setup.Secret = ""
	}
	return okResponse(setup)
}

func (e *Engine) actionConfirmTwoFactor(ctx context.Context, r *Request) Response {
	if err := e.ConfirmTwoFactor(r.context(ctx), r.User, r.str("id"), r.str("code")); err != nil {
		return ErrorResponse(err)
	}
	return okResponse(MessageBody{Message: "Two-factor authentication enabled."})
}

func (e *Engine) actionDisableTwoFactor(ctx context.Context, r *Request) Response {
	if err := e.DisableTwoFactor(r.context(ctx), r.User, r.str("code")); err != nil {
		return ErrorResponse(err)
	}
	return okResponse(MessageBody{Message: "Two-factor authentication disabled."})
}
