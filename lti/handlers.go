package lti

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursekit/lti-test-harness/framework"
	"github.com/coursekit/lti-test-harness/lti/fields"
	"github.com/coursekit/lti-test-harness/lti/nonce"
	"github.com/coursekit/lti-test-harness/lti/sign"
)

const (
	xsrfActionLogin  = "lti-login"
	xsrfTokenFormKey = "xsrf_token"
)

// Service serves a course's LTI endpoints: the consumer-side launch, login,
// and redirect pages, and the provider-side validation endpoint at the base
// path. Mount its Handler under the course slug.
type Service struct {
	getRuntime func(r *http.Request) (*Runtime, error)
	nonces     nonce.Store
	xsrf       XSRFManager
	signer     sign.Signer
	logger     framework.Logger
}

// NewService creates a Service. getRuntime is called per request so that
// course setting edits take effect without restarts; its error is reported as
// a 500. If store is nil, an in-memory nonce store is used.
func NewService(
	getRuntime func(r *http.Request) (*Runtime, error),
	store nonce.Store,
	xsrfSecret []byte,
	logger framework.Logger,
) *Service {
	if store == nil {
		store = nonce.NewMemoryStore()
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Service{
		getRuntime: getRuntime,
		nonces:     store,
		xsrf:       NewXSRFManager(xsrfSecret),
		logger:     logger,
	}
}

// Handler returns the route handler for the service's endpoints, with paths
// relative to the course slug.
func (s *Service) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(LaunchPath, s.launch).Methods("GET")
	router.HandleFunc(LoginPath, s.loginGet).Methods("GET")
	router.HandleFunc(LoginPath, s.loginPost).Methods("POST")
	router.HandleFunc(RedirectPath, s.redirect).Methods("GET")
	router.HandleFunc(BasePath, s.validationGet).Methods("GET")
	router.HandleFunc(BasePath, s.validate).Methods("POST")
	return router
}

var launchTemplate = template.Must(template.New("launch").Parse(`<!DOCTYPE html>
<html>
<body onload="document.forms[0].submit()">
<form action="{{.ToolURL}}" method="post">
{{range $name, $value := .SignedParameters}}<input type="hidden" name="{{$name}}" value="{{$value}}">
{{end}}<noscript><input type="submit" value="Continue"></noscript>
</form>
</body>
</html>
`))

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<body>
<p>This content requires you to sign in to the course.</p>
<form action="{{.PostURL}}" method="post">
<input type="hidden" name="{{.ReturnURLKey}}" value="{{.ReturnURL}}">
<input type="hidden" name="{{.XSRFTokenKey}}" value="{{.XSRFToken}}">
<input type="submit" value="Sign in">
</form>
</body>
</html>
`))

var redirectTemplate = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<body>
<script>window.location = {{.LoginURL}};</script>
<a href="{{.LoginURL}}">Continue</a>
</body>
</html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<body>
<h1>{{.StatusMessage}}</h1>
<p>{{.Details}}</p>
</body>
</html>
`))

// handleError logs the private message and renders the public one. The public
// message defaults to the private one when they do not differ.
func (s *Service) handleError(w http.ResponseWriter, code int, privateMessage, publicMessage string) {
	if publicMessage == "" {
		publicMessage = privateMessage
	}
	s.logger.Printf("%s", privateMessage)
	w.WriteHeader(code)
	_ = errorTemplate.Execute(w, map[string]string{
		"StatusMessage": http.StatusText(code),
		"Details":       publicMessage,
	})
}

func (s *Service) runtimeOrError(w http.ResponseWriter, r *http.Request) *Runtime {
	rt, err := s.getRuntime(r)
	if err != nil {
		publicMessage := "Unable to get runtime"
		s.handleError(w, 500, publicMessage+"; error was "+err.Error(), publicMessage)
		return nil
	}
	return rt
}

func (s *Service) returnURLOrError(w http.ResponseWriter, values interface{ Get(string) string }) string {
	returnURL := values.Get(fields.LaunchPresentationReturnURL)
	if returnURL == "" {
		s.handleError(w, 400,
			"Unable to process LTI request; "+fields.LaunchPresentationReturnURL+" not specified", "")
	}
	return returnURL
}

func (s *Service) launch(w http.ResponseWriter, r *http.Request) {
	rt := s.runtimeOrError(w, r)
	if rt == nil {
		return
	}

	query := r.URL.Query()
	name := query.Get("name")
	resourceLinkID := query.Get(fields.ResourceLinkID)
	returnURL := query.Get(fields.LaunchPresentationReturnURL)
	toolConfig, hasTool := rt.ToolConfig(name)

	if name == "" || !hasTool || resourceLinkID == "" || returnURL == "" {
		s.logger.Printf(
			`Unable to attempt LTI launch; invalid parameters: name: %q, tool known: %t, `+
				`resource_link_id: %q, launch_presentation_return_url: %q`,
			name, hasTool, resourceLinkID, returnURL)
		w.WriteHeader(400)
		return
	}

	var extraFields map[string]string
	if encoded := query.Get("extra_fields"); encoded != "" {
		decoded, err := fields.DecodeExtra(encoded)
		if err != nil {
			s.handleError(w, 400, "Unable to process LTI request; bad extra_fields: "+err.Error(), "")
			return
		}
		extraFields = decoded
	}

	from := map[string]string{
		fields.LaunchPresentationReturnURL: returnURL,
		fields.ResourceLinkID:              resourceLinkID,
		// No support for other roles yet.
		fields.Roles: fields.RoleStudent,
	}
	for k, v := range extraFields {
		from[k] = v
	}
	if userID := rt.UserID(r); userID != "" {
		from[fields.UserID] = userID
	}

	payload, err := fields.Make(from)
	if err != nil {
		s.handleError(w, 400, "Unable to process LTI request; "+err.Error(), "")
		return
	}

	signed := s.signer.Sign(toolConfig.Key, toolConfig.Secret, payload, toolConfig.URL)
	_ = launchTemplate.Execute(w, map[string]interface{}{
		"ToolURL":          toolConfig.URL,
		"SignedParameters": signed,
	})
}

func (s *Service) loginGet(w http.ResponseWriter, r *http.Request) {
	rt := s.runtimeOrError(w, r)
	if rt == nil {
		return
	}
	returnURL := s.returnURLOrError(w, r.URL.Query())
	if returnURL == "" {
		return
	}

	_ = loginTemplate.Execute(w, map[string]string{
		"PostURL":      JoinPath(rt.BaseURL(), LoginPath),
		"ReturnURLKey": fields.LaunchPresentationReturnURL,
		"ReturnURL":    returnURL,
		"XSRFTokenKey": xsrfTokenFormKey,
		"XSRFToken":    s.xsrf.CreateToken(xsrfActionLogin),
	})
}

func (s *Service) loginPost(w http.ResponseWriter, r *http.Request) {
	rt := s.runtimeOrError(w, r)
	if rt == nil {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.handleError(w, 400, "Unable to process LTI request; malformed form body", "")
		return
	}
	returnURL := s.returnURLOrError(w, r.PostForm)
	if returnURL == "" {
		return
	}

	token := r.PostForm.Get(xsrfTokenFormKey)
	if token == "" || !s.xsrf.ValidToken(token, xsrfActionLogin) {
		s.handleError(w, 400, "Unable to process LTI request; invalid XSRF token", "")
		return
	}

	_ = redirectTemplate.Execute(w, map[string]string{
		"LoginURL": rt.LoginURL(returnURL),
	})
}

func (s *Service) redirect(w http.ResponseWriter, r *http.Request) {
	returnURL := s.returnURLOrError(w, r.URL.Query())
	if returnURL == "" {
		return
	}
	http.Redirect(w, r, returnURL, http.StatusFound)
}
