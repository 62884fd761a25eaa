package coursetests

import (
	"net/http"
	"strings"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/ltest"
	"github.com/coursekit/lti-test-harness/lti"
	"github.com/coursekit/lti-test-harness/lti/fields"
	"github.com/coursekit/lti-test-harness/lti/sign"
)

const (
	providerKey    = "consumer1"
	providerSecret = "consumersecret1"

	launchResource = "unit?unit=1"
)

func doLTIProviderTests(t *ltest.T) {
	t.RequireCapability(appinfo.CapabilityLTIProvider)

	t.Run("a correctly signed launch redirects to the resource", func(t *ltest.T) {
		course := setUpProviderCourse(t, true)
		consumer := NewAppClient(t)

		resp, body := consumer.PostForm(validationPath(course),
			signedLaunch(t, course, nil))
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected status 302 for a valid launch, got %d (%s)", resp.StatusCode, body)
			t.FailNow()
		}
		expected := "/" + course + "/" + launchResource
		if location := resp.Header.Get("Location"); location != expected {
			t.Errorf("launch redirects to %q, expected %q", location, expected)
		}
	})

	t.Run("a tampered signature is refused", func(t *ltest.T) {
		course := setUpProviderCourse(t, true)
		consumer := NewAppClient(t)

		params := signedLaunch(t, course, nil)
		params[fields.ResourceLinkID] = "someotherlink"
		resp, _ := consumer.PostForm(validationPath(course), params)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for a tampered launch, got %d", resp.StatusCode)
		}
	})

	t.Run("an unknown consumer key is refused", func(t *ltest.T) {
		course := setUpProviderCourse(t, true)
		consumer := NewAppClient(t)

		params := map[string]string{
			fields.LaunchPresentationReturnURL: "http://example.com/return",
			fields.CustomResource:              launchResource,
		}
		for name, value := range fields.Defaults() {
			params[name] = value
		}
		params[fields.ResourceLinkID] = "link1"
		signed := sign.Sign("strangerkey", providerSecret, params,
			Harness(t).AppBaseURL()+validationPath(course))

		resp, _ := consumer.PostForm(validationPath(course), signed)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for an unknown consumer key, got %d", resp.StatusCode)
		}
	})

	t.Run("a replayed launch is refused", func(t *ltest.T) {
		course := setUpProviderCourse(t, true)
		consumer := NewAppClient(t)

		params := signedLaunch(t, course, nil)
		resp, _ := consumer.PostForm(validationPath(course), params)
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected status 302 for the first launch, got %d", resp.StatusCode)
			t.FailNow()
		}
		resp, _ = consumer.PostForm(validationPath(course), params)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for the replayed launch, got %d", resp.StatusCode)
		}
	})

	t.Run("missing base fields are refused", func(t *ltest.T) {
		course := setUpProviderCourse(t, true)
		consumer := NewAppClient(t)

		params := signedLaunch(t, course, nil)
		delete(params, fields.ResourceLinkID)
		resp, _ := consumer.PostForm(validationPath(course), params)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for a launch with no resource link, got %d", resp.StatusCode)
		}
	})

	t.Run("anonymous launches against private courses go to login", func(t *ltest.T) {
		course := setUpProviderCourse(t, false)
		consumer := NewAppClient(t)

		resp, _ := consumer.PostForm(validationPath(course), signedLaunch(t, course, nil))
		requireLoginRedirect(t, resp, course)
	})

	t.Run("the consumer can force the login flow", func(t *ltest.T) {
		course := setUpProviderCourse(t, true)
		consumer := NewAppClient(t)

		resp, _ := consumer.PostForm(validationPath(course),
			signedLaunch(t, course, map[string]string{fields.CustomForceLogin: "true"}))
		requireLoginRedirect(t, resp, course)
	})

	t.Run("an authenticated user skips the login flow", func(t *ltest.T) {
		course := setUpProviderCourse(t, false)
		consumer := NewAppClient(t)
		consumer.Login("student@example.com", false)

		resp, _ := consumer.PostForm(validationPath(course), signedLaunch(t, course, nil))
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected status 302 for an authenticated launch, got %d", resp.StatusCode)
			t.FailNow()
		}
		expected := "/" + course + "/" + launchResource
		if location := resp.Header.Get("Location"); location != expected {
			t.Errorf("launch redirects to %q, expected %q", location, expected)
		}
	})

	t.Run("the provider can be disabled", func(t *ltest.T) {
		admin := NewAppClient(t)
		course, _ := admin.CreateCourse()
		admin.ConfigureLTI(course, appinfo.LTIConfigParams{
			ProviderEnabled: false,
			Browsable:       true,
			Security:        securityYAML(),
		})

		consumer := NewAppClient(t)
		resp, _ := consumer.PostForm(validationPath(course), signedLaunch(t, course, nil))
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404 when the provider is disabled, got %d", resp.StatusCode)
		}
	})
}

func setUpProviderCourse(t *ltest.T, browsable bool) string {
	admin := NewAppClient(t)
	course, _ := admin.CreateCourse()
	admin.ConfigureLTI(course, appinfo.LTIConfigParams{
		ProviderEnabled: true,
		Browsable:       browsable,
		Security:        securityYAML(),
	})
	return course
}

func securityYAML() string {
	return "- " + providerKey + ": " + providerSecret + "\n"
}

func validationPath(course string) string {
	return "/" + course + lti.BasePath
}

// signedLaunch builds a complete launch form signed with the provider course's
// configured consumer secret, optionally merging extra fields in before signing.
func signedLaunch(t *ltest.T, course string, extra map[string]string) map[string]string {
	params := map[string]string{
		fields.LaunchPresentationReturnURL: "http://example.com/return",
		fields.CustomResource:              launchResource,
	}
	for name, value := range fields.Defaults() {
		params[name] = value
	}
	params[fields.ResourceLinkID] = "link1"
	for name, value := range extra {
		params[name] = value
	}
	return sign.Sign(providerKey, providerSecret, params,
		Harness(t).AppBaseURL()+validationPath(course))
}

func requireLoginRedirect(t *ltest.T, resp *http.Response, course string) {
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected status 302 to the login flow, got %d", resp.StatusCode)
		t.FailNow()
	}
	location := resp.Header.Get("Location")
	if !strings.HasPrefix(location, "/"+course+lti.LoginPath) {
		t.Errorf("expected a redirect into the login flow, got %q", location)
	}
}
