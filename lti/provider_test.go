package lti

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/lti-test-harness/lti/fields"
	"github.com/coursekit/lti-test-harness/lti/sign"
)

// httptest requests default to host example.com.
const validationURL = "http://example.com" + BasePath

func validLaunchParams() map[string]string {
	return map[string]string{
		fields.LTIVersion:                  fields.VersionLTI1p0,
		fields.LTIMessageType:              fields.MessageTypeLaunchRequest,
		fields.ResourceLinkID:              "rlid",
		fields.LaunchPresentationReturnURL: "http://example.com/return",
		fields.CustomResource:              "unit?unit=1",
	}
}

func signedLaunchParams(params map[string]string) map[string]string {
	return sign.Sign("key1", "secret1", params, validationURL)
}

func postValidation(s *Service, params map[string]string) *httptest.ResponseRecorder {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	r := httptest.NewRequest("POST", BasePath, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serveLTI(s, r)
}

func TestValidationGetReturns404(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	rec := serveLTI(s, httptest.NewRequest("GET", BasePath, nil))
	assert.Equal(t, 404, rec.Code)
}

func TestValidationReturns500IfGettingRuntimeFails(t *testing.T) {
	s := NewService(
		func(*http.Request) (*Runtime, error) { return nil, errors.New("boom") },
		nil, []byte("xsrf-secret"), nil)
	rec := postValidation(s, signedLaunchParams(validLaunchParams()))

	assert.Equal(t, 500, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unable to get runtime")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestValidationReturns404IfProviderNotEnabled(t *testing.T) {
	config := testRuntimeConfig()
	config.Settings.ProviderEnabled = false
	s := newTestService(t, config)
	rec := postValidation(s, signedLaunchParams(validLaunchParams()))

	assert.Equal(t, 404, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider is not enabled")
}

func TestValidationReturns400IfBaseFieldMissingOrInvalid(t *testing.T) {
	for _, field := range []string{
		fields.LTIVersion, fields.LTIMessageType, fields.ResourceLinkID,
	} {
		t.Run(field+" missing", func(t *testing.T) {
			s := newTestService(t, testRuntimeConfig())
			params := validLaunchParams()
			delete(params, field)
			rec := postValidation(s, signedLaunchParams(params))
			assert.Equal(t, 400, rec.Code)
			assert.Contains(t, rec.Body.String(), field+" missing")
		})
		t.Run(field+" invalid", func(t *testing.T) {
			s := newTestService(t, testRuntimeConfig())
			params := validLaunchParams()
			params[field] = "invalid_value"
			rec := postValidation(s, signedLaunchParams(params))
			assert.Equal(t, 400, rec.Code)
			assert.Contains(t, rec.Body.String(), fmt.Sprintf("invalid %s: invalid_value", field))
		})
	}
}

func TestValidationReturns400IfResourceLinkIDEmpty(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := validLaunchParams()
	params[fields.ResourceLinkID] = ""
	rec := postValidation(s, signedLaunchParams(params))
	assert.Equal(t, 400, rec.Code)
}

func TestValidationReturns400IfConsumerKeyMissing(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := signedLaunchParams(validLaunchParams())
	delete(params, sign.ConsumerKeyField)
	rec := postValidation(s, params)

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), sign.ConsumerKeyField+" missing")
}

func TestValidationReturns400IfSecurityConfigMissing(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := signedLaunchParams(validLaunchParams())
	params[sign.ConsumerKeyField] = "unknown-key"
	rec := postValidation(s, params)

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "no config found for key unknown-key")
}

func TestValidationReturns400IfReturnURLMissing(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := validLaunchParams()
	delete(params, fields.LaunchPresentationReturnURL)
	rec := postValidation(s, signedLaunchParams(params))

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), fields.LaunchPresentationReturnURL+" not specified")
}

func TestValidationReturns400IfCustomResourceMissing(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := validLaunchParams()
	delete(params, fields.CustomResource)
	rec := postValidation(s, signedLaunchParams(params))

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), fields.CustomResource+" not specified")
}

func TestValidationReturns400IfSignatureMissing(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := signedLaunchParams(validLaunchParams())
	delete(params, sign.SignatureField)
	rec := postValidation(s, params)

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), sign.SignatureField+" not specified")
}

func TestValidationReturns400IfSignatureMismatch(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := signedLaunchParams(validLaunchParams())
	params[fields.ResourceLinkID] = "tampered"
	rec := postValidation(s, params)

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "signature mismatch")
}

func TestValidationReturns302ToResourceIfAllPassAndLoginNotNeeded(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	rec := postValidation(s, signedLaunchParams(validLaunchParams()))

	require.Equal(t, 302, rec.Code)
	assert.Equal(t, "/my_course/unit?unit=1", rec.Header().Get("Location"))
}

func TestValidationReturns302ToLoginWithEscapedRedirectURL(t *testing.T) {
	config := testRuntimeConfig()
	config.Settings.Browsable = false
	s := newTestService(t, config)
	rec := postValidation(s, signedLaunchParams(validLaunchParams()))

	require.Equal(t, 302, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/my_course/lti/login?"), location)
	assert.Contains(t, location, "launch_presentation_return_url=http%3A%2F%2Fexample.com%2Freturn")
}

func TestValidationForceLoginRedirectsAnonymousUser(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := validLaunchParams()
	params[fields.CustomForceLogin] = "true"
	rec := postValidation(s, signedLaunchParams(params))

	require.Equal(t, 302, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/my_course/lti/login?")
}

func TestValidationAuthenticatedUserSkipsLoginEvenWhenForced(t *testing.T) {
	config := testRuntimeConfig()
	config.Settings.Browsable = false
	config.Users = fakeUserSource{user: &User{Email: "student@example.com"}}
	s := newTestService(t, config)
	params := validLaunchParams()
	params[fields.CustomForceLogin] = "true"
	rec := postValidation(s, signedLaunchParams(params))

	require.Equal(t, 302, rec.Code)
	assert.Equal(t, "/my_course/unit?unit=1", rec.Header().Get("Location"))
}

func TestValidationRejectsReplayedNonce(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := signedLaunchParams(validLaunchParams())

	first := postValidation(s, params)
	require.Equal(t, 302, first.Code)

	second := postValidation(s, params)
	assert.Equal(t, 400, second.Code)
	assert.Contains(t, second.Body.String(), sign.NonceField+" already used")
}

func TestValidationRejectsStaleTimestamp(t *testing.T) {
	s := newTestService(t, testRuntimeConfig())
	params := validLaunchParams()
	staleSigner := sign.Signer{TimeFunc: func() time.Time { return time.Now().Add(-time.Hour) }}
	rec := postValidation(s, staleSigner.Sign("key1", "secret1", params, validationURL))

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "outside the acceptance window")
}

func TestNeedsLogin(t *testing.T) {
	// (browsable, hasUser, forceLogin) -> needsLogin
	cases := []struct {
		browsable, hasUser, forceLogin bool
		expected                       bool
	}{
		{false, false, false, true},
		{false, false, true, true},
		{false, true, false, false},
		{false, true, true, false},
		{true, false, false, false},
		{true, false, true, true},
		{true, true, false, false},
		{true, true, true, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, needsLogin(c.browsable, c.hasUser, c.forceLogin),
			"browsable=%t hasUser=%t forceLogin=%t", c.browsable, c.hasUser, c.forceLogin)
	}
}
