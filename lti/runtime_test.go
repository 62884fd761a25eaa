package lti

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserSource struct {
	user *User
}

func (f fakeUserSource) CurrentUser(*http.Request) *User { return f.user }

func testRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Settings: CourseSettings{
			Slug:            "/my_course",
			Browsable:       true,
			ProviderEnabled: true,
			Security:        "- key1: secret1",
			Tools:           toolYAML,
		},
		ProviderAllowed: true,
		AppID:           "test-app",
	}
}

func TestNewRuntimeFailsOnBadToolsConfig(t *testing.T) {
	config := testRuntimeConfig()
	config.Settings.Tools = "not list"
	_, err := NewRuntime(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot parse tools config yaml")
}

func TestNewRuntimeFailsOnBadSecurityConfig(t *testing.T) {
	config := testRuntimeConfig()
	config.Settings.Security = "not list"
	_, err := NewRuntime(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot parse settings config yaml")
}

func TestProviderEnabledFalseIfNotEnabledForCourse(t *testing.T) {
	config := testRuntimeConfig()
	config.Settings.ProviderEnabled = false
	rt, err := NewRuntime(config)
	require.NoError(t, err)
	assert.False(t, rt.ProviderEnabled())
}

func TestProviderEnabledFalseIfNotAllowedForDeployment(t *testing.T) {
	config := testRuntimeConfig()
	config.ProviderAllowed = false
	rt, err := NewRuntime(config)
	require.NoError(t, err)
	assert.False(t, rt.ProviderEnabled())
}

func TestProviderEnabledTrueIfAllowedForDeploymentAndCourse(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)
	assert.True(t, rt.ProviderEnabled())
}

func TestSecurityConfigReturnsExistingConfig(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)

	config, ok := rt.SecurityConfig("key1")
	assert.True(t, ok)
	assert.Equal(t, SecurityConfig{Key: "key1", Secret: "secret1"}, config)
}

func TestSecurityConfigMissingForUnknownKey(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)

	_, ok := rt.SecurityConfig("no-such-key")
	assert.False(t, ok)
}

func TestDefaultResourceLinkIDStripsSlashes(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)
	assert.Equal(t, "my_course", rt.DefaultResourceLinkID())
}

func TestLaunchURL(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)

	launchURL := rt.LaunchURL("name_value", "rlid", "http://example.com/return", "")
	assert.Contains(t, launchURL, "/my_course/lti/launch?")
	assert.Contains(t, launchURL, "name=name_value")
	assert.Contains(t, launchURL, "resource_link_id=rlid")
	assert.Contains(t, launchURL, "launch_presentation_return_url=http%3A%2F%2Fexample.com%2Freturn")
	assert.NotContains(t, launchURL, "extra_fields")
}

func TestLaunchURLIncludesExtraFieldsWhenSet(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)

	launchURL := rt.LaunchURL("name_value", "rlid", "http://example.com/return", "ZW5jb2RlZA==")
	assert.Contains(t, launchURL, "extra_fields=ZW5jb2RlZA%3D%3D")
}

func TestLoginURLBouncesThroughRedirectEndpoint(t *testing.T) {
	config := testRuntimeConfig()
	config.PlatformLoginURL = func(dest string) string { return "/login?dest=" + dest }
	rt, err := NewRuntime(config)
	require.NoError(t, err)

	loginURL := rt.LoginURL("http://example.com/return")
	assert.Contains(t, loginURL, "/login?dest=/my_course/lti/redirect?")
	assert.Contains(t, loginURL, "launch_presentation_return_url=http%3A%2F%2Fexample.com%2Freturn")
}

func TestUserIDEmptyWithoutUser(t *testing.T) {
	rt, err := NewRuntime(testRuntimeConfig())
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/my_course/lti", nil)
	assert.Equal(t, "", rt.UserID(r))
}

func TestUserIDStableAndOpaque(t *testing.T) {
	config := testRuntimeConfig()
	config.Users = fakeUserSource{user: &User{Email: "student@example.com"}}
	rt, err := NewRuntime(config)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/my_course/lti", nil)
	first := rt.UserID(r)
	second := rt.UserID(r)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.NotContains(t, first, "student@example.com")
}
