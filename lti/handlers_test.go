package lti

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/lti-test-harness/lti/fields"
	"github.com/coursekit/lti-test-harness/lti/sign"
)

func newTestService(t *testing.T, config RuntimeConfig) *Service {
	t.Helper()
	rt, err := NewRuntime(config)
	require.NoError(t, err)
	return NewService(
		func(*http.Request) (*Runtime, error) { return rt, nil },
		nil, []byte("xsrf-secret"), nil)
}

func serveLTI(s *Service, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	return rec
}

func launchQuery() url.Values {
	return url.Values{
		"name":                             {"name_value"},
		fields.ResourceLinkID:              {"rlid"},
		fields.LaunchPresentationReturnURL: {"http://example.com/return"},
	}
}

func getLaunch(s *Service, query url.Values) *httptest.ResponseRecorder {
	return serveLTI(s, httptest.NewRequest("GET", LaunchPath+"?"+query.Encode(), nil))
}

func TestLaunchReturns400IfNameNotSet(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := launchQuery()
	query.Del("name")
	assert.Equal(t, 400, getLaunch(s, query).Code)
}

func TestLaunchReturns400IfToolUnknown(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := launchQuery()
	query.Set("name", "no_such_tool")
	assert.Equal(t, 400, getLaunch(s, query).Code)
}

func TestLaunchReturns400IfResourceLinkIDNotSet(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := launchQuery()
	query.Del(fields.ResourceLinkID)
	assert.Equal(t, 400, getLaunch(s, query).Code)
}

func TestLaunchReturns400IfReturnURLNotSet(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := launchQuery()
	query.Del(fields.LaunchPresentationReturnURL)
	assert.Equal(t, 400, getLaunch(s, query).Code)
}

func TestLaunchRendersSignedFormWhenUserUnset(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	rec := getLaunch(s, launchQuery())

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="url_value"`)
	assert.Contains(t, body, `name="oauth_signature"`)
	assert.Contains(t, body, `name="oauth_consumer_key" value="key_value"`)
	assert.Contains(t, body, `name="roles" value="student"`)
	assert.Contains(t, body, `name="lti_version" value="LTI-1p0"`)
	assert.Contains(t, body, `name="lti_message_type" value="basic-lti-launch-request"`)
	assert.NotContains(t, body, `name="user_id"`)
}

func TestLaunchRendersUserIDWhenUserSet(t *testing.T) {
	config := testRuntimeConfig()
	config.Users = fakeUserSource{user: &User{Email: "student@example.com"}}
	s := newTestService(t, config)
	rec := getLaunch(s, launchQuery())

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="user_id"`)
}

func TestLaunchRendersExtraFieldsInFormInputs(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	encoded, err := fields.EncodeExtra("custom_foo: custom_foo_value")
	require.NoError(t, err)
	query := launchQuery()
	query.Set("extra_fields", encoded)
	rec := getLaunch(s, query)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="custom_foo" value="custom_foo_value"`)
}

func TestLaunchReturns400OnBadExtraFields(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := launchQuery()
	query.Set("extra_fields", "not-base64!!!")
	assert.Equal(t, 400, getLaunch(s, query).Code)
}

func TestLoginGetRendersFormWithXSRFToken(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := url.Values{fields.LaunchPresentationReturnURL: {"http://example.com/return"}}
	rec := serveLTI(s, httptest.NewRequest("GET", LoginPath+"?"+query.Encode(), nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/my_course/lti/login"`)
	assert.Contains(t, body, `name="launch_presentation_return_url" value="http://example.com/return"`)
	assert.Contains(t, body, `name="xsrf_token"`)
}

func TestLoginGetReturns400IfReturnURLNotSet(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	rec := serveLTI(s, httptest.NewRequest("GET", LoginPath, nil))
	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "launch_presentation_return_url not specified")
}

func postLogin(s *Service, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", LoginPath, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serveLTI(s, r)
}

func TestLoginPostRendersRedirectWithCorrectReturnURL(t *testing.T) {
	config := testRuntimeConfig()
	config.PlatformLoginURL = func(dest string) string { return "http://login.example.com?dest=" + url.QueryEscape(dest) }
	s := newTestService(t, config)

	form := url.Values{
		fields.LaunchPresentationReturnURL: {"http://example.com/return"},
		xsrfTokenFormKey:                   {s.xsrf.CreateToken(xsrfActionLogin)},
	}
	rec := postLogin(s, form)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://login.example.com?dest=")
}

func TestLoginPostReturns400IfReturnURLNotSet(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	form := url.Values{xsrfTokenFormKey: {s.xsrf.CreateToken(xsrfActionLogin)}}
	assert.Equal(t, 400, postLogin(s, form).Code)
}

func TestLoginPostReturns400IfXSRFTokenInvalid(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	form := url.Values{
		fields.LaunchPresentationReturnURL: {"http://example.com/return"},
		xsrfTokenFormKey:                   {"bogus/token"},
	}
	rec := postLogin(s, form)
	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid XSRF token")
}

func TestLoginPostReturns400IfXSRFTokenMissing(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	form := url.Values{fields.LaunchPresentationReturnURL: {"http://example.com/return"}}
	assert.Equal(t, 400, postLogin(s, form).Code)
}

func TestRedirectReturns302ToLaunchPresentationURL(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	query := url.Values{fields.LaunchPresentationReturnURL: {"http://example.com/return"}}
	rec := serveLTI(s, httptest.NewRequest("GET", RedirectPath+"?"+query.Encode(), nil))

	assert.Equal(t, 302, rec.Code)
	assert.Equal(t, "http://example.com/return", rec.Header().Get("Location"))
}

func TestRedirectReturns400IfLaunchPresentationURLNotSet(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	rec := serveLTI(s, httptest.NewRequest("GET", RedirectPath, nil))
	assert.Equal(t, 400, rec.Code)
}

func TestLaunchSignatureVerifiesAgainstToolSecret(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	rec := getLaunch(s, launchQuery())
	require.Equal(t, 200, rec.Code)

	inputs := regexp.MustCompile(`name="([^"]+)" value="([^"]*)"`).
		FindAllStringSubmatch(rec.Body.String(), -1)
	params := make(map[string]string)
	for _, match := range inputs {
		params[match[1]] = match[2]
	}

	verified, err := sign.Verify("secret_value", params, "url_value")
	require.NoError(t, err)
	assert.True(t, verified)
}
