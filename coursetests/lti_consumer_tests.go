package coursetests

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/harness"
	"github.com/coursekit/lti-test-harness/framework/ltest"
	"github.com/coursekit/lti-test-harness/lti"
	"github.com/coursekit/lti-test-harness/lti/fields"
	"github.com/coursekit/lti-test-harness/lti/sign"
)

const (
	toolName   = "mytool"
	toolKey    = "tool-consumer-key"
	toolSecret = "tool-consumer-secret"
)

func doLTIConsumerTests(t *ltest.T) {
	t.RequireCapability(appinfo.CapabilityLTIConsumer)

	t.Run("the launch page renders a signed form", func(t *ltest.T) {
		client, course, toolURL, _ := setUpConsumerCourse(t)

		resp, body := client.Get(launchPath(course, map[string]string{
			"name":                             toolName,
			fields.ResourceLinkID:              "link1",
			fields.LaunchPresentationReturnURL: "http://example.com/return",
		}))
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 from the launch page, got %d", resp.StatusCode)
			t.FailNow()
		}

		params := parseFormInputs(body)
		for field, expected := range map[string]string{
			fields.LTIMessageType:              fields.MessageTypeLaunchRequest,
			fields.LTIVersion:                  fields.VersionLTI1p0,
			fields.ResourceLinkID:              "link1",
			fields.Roles:                       fields.RoleStudent,
			fields.LaunchPresentationReturnURL: "http://example.com/return",
			sign.ConsumerKeyField:              toolKey,
		} {
			if params[field] != expected {
				t.Errorf("form field %s is %q, expected %q", field, params[field], expected)
			}
		}

		matches, err := sign.Verify(toolSecret, params, toolURL)
		if err != nil {
			t.Errorf("could not verify the form signature: %s", err)
		} else if !matches {
			t.Errorf("the rendered form is not correctly signed for the tool URL %s", toolURL)
		}
	})

	t.Run("submitting the form reaches the tool", func(t *ltest.T) {
		client, course, toolURL, endpoint := setUpConsumerCourse(t)

		_, body := client.Get(launchPath(course, map[string]string{
			"name":                             toolName,
			fields.ResourceLinkID:              "link1",
			fields.LaunchPresentationReturnURL: "http://example.com/return",
		}))
		submitForm(t, toolURL, parseFormInputs(body))

		request := endpoint.RequireConnection(t)
		received, err := url.ParseQuery(string(request.Body))
		if err != nil {
			t.Errorf("the tool received a malformed form body: %s", err)
			t.FailNow()
		}
		params := map[string]string{}
		for name := range received {
			params[name] = received.Get(name)
		}
		matches, err := sign.Verify(toolSecret, params, toolURL)
		if err != nil || !matches {
			t.Errorf("the form received by the tool is not correctly signed (err: %v)", err)
		}
	})

	t.Run("extra fields are carried into the launch", func(t *ltest.T) {
		client, course, toolURL, _ := setUpConsumerCourse(t)

		encoded, err := fields.EncodeExtra(fields.CustomForceLogin + ": true\n")
		if err != nil {
			t.Errorf("could not encode extra fields: %s", err)
			t.FailNow()
		}
		_, body := client.Get(launchPath(course, map[string]string{
			"name":                             toolName,
			fields.ResourceLinkID:              "link1",
			fields.LaunchPresentationReturnURL: "http://example.com/return",
			"extra_fields":                     encoded,
		}))

		params := parseFormInputs(body)
		if params[fields.CustomForceLogin] != "true" {
			t.Errorf("form field %s is %q, expected %q",
				fields.CustomForceLogin, params[fields.CustomForceLogin], "true")
		}
		if matches, err := sign.Verify(toolSecret, params, toolURL); err != nil || !matches {
			t.Errorf("the form with extra fields is not correctly signed (err: %v)", err)
		}
	})

	t.Run("launches for unknown tools are refused", func(t *ltest.T) {
		client, course, _, _ := setUpConsumerCourse(t)

		resp, _ := client.Get(launchPath(course, map[string]string{
			"name":                             "nosuchtool",
			fields.ResourceLinkID:              "link1",
			fields.LaunchPresentationReturnURL: "http://example.com/return",
		}))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for an unknown tool, got %d", resp.StatusCode)
		}
	})

	t.Run("launches require a return url", func(t *ltest.T) {
		client, course, _, _ := setUpConsumerCourse(t)

		resp, _ := client.Get(launchPath(course, map[string]string{
			"name":                toolName,
			fields.ResourceLinkID: "link1",
		}))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for a launch with no return url, got %d", resp.StatusCode)
		}
	})

	t.Run("the login page carries the return url through", func(t *ltest.T) {
		client, course, _, _ := setUpConsumerCourse(t)

		returnURL := "http://example.com/return"
		resp, body := client.Get("/" + course + lti.LoginPath + "?" +
			url.Values{fields.LaunchPresentationReturnURL: {returnURL}}.Encode())
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 from the login page, got %d", resp.StatusCode)
			t.FailNow()
		}
		params := parseFormInputs(body)
		if params[fields.LaunchPresentationReturnURL] != returnURL {
			t.Errorf("login form carries return url %q, expected %q",
				params[fields.LaunchPresentationReturnURL], returnURL)
		}
		if params["xsrf_token"] == "" {
			t.Errorf("login form does not carry an XSRF token")
		}
	})

	t.Run("the login post rejects a bad XSRF token", func(t *ltest.T) {
		client, course, _, _ := setUpConsumerCourse(t)

		resp, _ := client.PostForm("/"+course+lti.LoginPath, map[string]string{
			fields.LaunchPresentationReturnURL: "http://example.com/return",
			"xsrf_token":                       "bogus",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for a forged login post, got %d", resp.StatusCode)
		}
	})

	t.Run("the redirect endpoint bounces to the return url", func(t *ltest.T) {
		client, course, _, _ := setUpConsumerCourse(t)

		returnURL := "http://example.com/return"
		resp, _ := client.Get("/" + course + lti.RedirectPath + "?" +
			url.Values{fields.LaunchPresentationReturnURL: {returnURL}}.Encode())
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected status 302 from the redirect endpoint, got %d", resp.StatusCode)
			t.FailNow()
		}
		if location := resp.Header.Get("Location"); location != returnURL {
			t.Errorf("redirect goes to %q, expected %q", location, returnURL)
		}
	})
}

// setUpConsumerCourse creates a course whose single configured tool is a mock
// endpoint on the harness, so the harness can play the tool provider.
func setUpConsumerCourse(t *ltest.T) (client *AppClient, course, toolURL string, endpoint *harness.MockEndpoint) {
	endpoint = Harness(t).NewMockEndpoint(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
		}),
		t.DebugLogger(),
		harness.MockEndpointDescription("tool provider"),
	)
	t.Cleanup(endpoint.Close)
	toolURL = endpoint.BaseURL()

	client = NewAppClient(t)
	course, _ = client.CreateCourse()
	client.ConfigureLTI(course, appinfo.LTIConfigParams{
		Browsable: true,
		Tools:     toolYAML(toolName, toolKey, toolSecret, toolURL),
	})
	return client, course, toolURL, endpoint
}

func toolYAML(name, key, secret, toolURL string) string {
	return fmt.Sprintf(
		"- name: %s\n  description: a tool\n  key: %s\n  secret: %s\n  url: %s\n  version: \"1.2\"\n",
		name, key, secret, toolURL)
}

func launchPath(course string, query map[string]string) string {
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	return "/" + course + lti.LaunchPath + "?" + values.Encode()
}

var formInputPattern = regexp.MustCompile(`<input type="hidden" name="([^"]*)" value="([^"]*)">`)

// parseFormInputs extracts the hidden input fields from a rendered form page,
// undoing the template's HTML escaping.
func parseFormInputs(page string) map[string]string {
	params := map[string]string{}
	for _, match := range formInputPattern.FindAllStringSubmatch(page, -1) {
		params[html.UnescapeString(match[1])] = html.UnescapeString(match[2])
	}
	return params
}

// submitForm plays the browser's part of an auto-submitting launch form.
func submitForm(t *ltest.T, action string, params map[string]string) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	resp, err := http.Post(action, "application/x-www-form-urlencoded",
		strings.NewReader(values.Encode()))
	if err != nil {
		t.Errorf("could not submit the form to %s: %s", action, err)
		t.FailNow()
	}
	_ = resp.Body.Close()
}
