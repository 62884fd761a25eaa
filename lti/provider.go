package lti

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coursekit/lti-test-harness/lti/fields"
	"github.com/coursekit/lti-test-harness/lti/nonce"
	"github.com/coursekit/lti-test-harness/lti/sign"
)

// needsLogin decides whether an otherwise valid launch has to go through the
// login flow first. An authenticated user never does; an anonymous user does
// unless the course is browsable and the consumer did not force login.
func needsLogin(courseBrowsable, hasUser, forceLogin bool) bool {
	if hasUser || (courseBrowsable && !forceLogin) {
		return false
	}
	return true
}

func loginRedirectURL(baseURL, returnURL string) string {
	query := url.Values{fields.LaunchPresentationReturnURL: {returnURL}}
	return JoinPath(baseURL, LoginPath) + "?" + query.Encode()
}

func (s *Service) validationGet(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(404)
}

// checkBaseLTIField validates one of the required base fields with its
// predicate, writing a 400 and returning "" on failure.
func (s *Service) checkBaseLTIField(
	w http.ResponseWriter, post url.Values, fieldName string, predicate func(string) bool,
) string {
	values, present := post[fieldName]
	value := ""
	if present && len(values) > 0 {
		value = values[0]
	}
	if predicate(value) {
		return value
	}

	message := fieldName + " missing"
	if present {
		message = fmt.Sprintf("invalid %s: %s", fieldName, value)
	}
	s.handleError(w, 400, "Unable to process LTI request: "+message, "")
	return ""
}

func (s *Service) validate(w http.ResponseWriter, r *http.Request) {
	rt := s.runtimeOrError(w, r)
	if rt == nil {
		return
	}

	if !rt.ProviderEnabled() {
		s.handleError(w, 404, "Unable to process LTI request; provider is not enabled", "")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.handleError(w, 400, "Unable to process LTI request; malformed form body", "")
		return
	}
	post := r.PostForm

	if s.checkBaseLTIField(w, post, fields.LTIVersion, fields.ValidVersion) == "" {
		return
	}
	if s.checkBaseLTIField(w, post, fields.LTIMessageType, fields.ValidMessageType) == "" {
		return
	}
	if s.checkBaseLTIField(w, post, fields.ResourceLinkID, fields.ValidResourceLinkID) == "" {
		return
	}

	key := post.Get(sign.ConsumerKeyField)
	if key == "" {
		s.handleError(w, 400,
			"Unable to process LTI request; "+sign.ConsumerKeyField+" missing", "")
		return
	}

	securityConfig, hasConfig := rt.SecurityConfig(key)
	if !hasConfig {
		s.handleError(w, 400,
			"Unable to process LTI request; no config found for key "+key, "")
		return
	}

	returnURL := s.returnURLOrError(w, post)
	if returnURL == "" {
		return
	}

	resource := post.Get(fields.CustomResource)
	if resource == "" {
		s.handleError(w, 400,
			"Unable to process LTI request; "+fields.CustomResource+" not specified", "")
		return
	}

	requestSignature := post.Get(sign.SignatureField)
	if requestSignature == "" {
		s.handleError(w, 400,
			"Unable to process LTI request; "+sign.SignatureField+" not specified", "")
		return
	}

	params := make(map[string]string, len(post))
	for name, values := range post {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	matches, err := sign.Verify(securityConfig.Secret, params, requestURL(r))
	if err != nil {
		publicMessage := "error calculating signature"
		s.handleError(w, 400, publicMessage+": "+err.Error(), publicMessage)
		return
	}
	if !matches {
		publicMessage := "Unable to process LTI request; signature mismatch"
		privateMessage := fmt.Sprintf("%s. Ours: %s; theirs: %s", publicMessage,
			sign.ExpectedSignature(securityConfig.Secret, params, requestURL(r)),
			requestSignature)
		s.handleError(w, 400, privateMessage, publicMessage)
		return
	}

	if !s.checkReplay(w, r, key, params) {
		return
	}

	if needsLogin(rt.CourseBrowsable(), rt.CurrentUser(r) != nil, fields.ForceLogin(params)) {
		http.Redirect(w, r, loginRedirectURL(rt.BaseURL(), returnURL), http.StatusFound)
		return
	}

	http.Redirect(w, r, JoinPath(rt.BaseURL(), resource), http.StatusFound)
}

// checkReplay rejects launches whose timestamp is outside the acceptance
// window or whose nonce has been presented before. Nonces are scoped to the
// consumer key.
func (s *Service) checkReplay(
	w http.ResponseWriter, r *http.Request, key string, params map[string]string,
) bool {
	now := time.Now()
	timestamp, err := strconv.ParseInt(params[sign.TimestampField], 10, 64)
	if err != nil {
		s.handleError(w, 400,
			"Unable to process LTI request; "+sign.TimestampField+" missing or malformed", "")
		return false
	}
	age := now.Sub(time.Unix(timestamp, 0))
	if age > nonce.Window || age < -nonce.Window {
		s.handleError(w, 400,
			"Unable to process LTI request; "+sign.TimestampField+" outside the acceptance window", "")
		return false
	}

	value := params[sign.NonceField]
	if value == "" {
		s.handleError(w, 400,
			"Unable to process LTI request; "+sign.NonceField+" not specified", "")
		return false
	}
	seen, err := s.nonces.SeenBefore(r.Context(), key+":"+value, now)
	if err != nil {
		publicMessage := "Unable to check request nonce"
		s.handleError(w, 500, publicMessage+"; error was "+err.Error(), publicMessage)
		return false
	}
	if seen {
		s.handleError(w, 400,
			"Unable to process LTI request; "+sign.NonceField+" already used", "")
		return false
	}
	return true
}

// requestURL reconstructs the URL the consumer signed against. The validation
// endpoint never carries a query string, so scheme, host, and path suffice.
// RequestURI is preferred over URL.Path because the service may be mounted
// behind http.StripPrefix, and the consumer signed the unstripped path.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	path := r.URL.Path
	if r.RequestURI != "" {
		path = r.RequestURI
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
	}
	return scheme + "://" + r.Host + path
}
