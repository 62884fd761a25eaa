package lti

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coursekit/lti-test-harness/lti/fields"
)

// URL paths, relative to the course slug.
const (
	BasePath     = "/lti"
	LaunchPath   = BasePath + "/launch"
	LoginPath    = BasePath + "/login"
	RedirectPath = BasePath + "/redirect"
)

// CourseSettings is the per-course configuration the LTI machinery reads.
// Tools and Security hold the raw YAML exactly as entered by the course admin.
type CourseSettings struct {
	Slug            string
	Browsable       bool
	ProviderEnabled bool
	Tools           string
	Security        string
}

// User is an authenticated platform user.
type User struct {
	Email string
}

// UserSource resolves the current user from a request, if any.
type UserSource interface {
	CurrentUser(r *http.Request) *User
}

// RuntimeConfig supplies the platform state a Runtime is derived from.
type RuntimeConfig struct {
	Settings CourseSettings

	// ProviderAllowed is the deployment-level switch; the provider endpoint is
	// live only when both it and Settings.ProviderEnabled are set.
	ProviderAllowed bool

	// AppID namespaces externally visible user IDs per deployment.
	AppID string

	Users UserSource

	// PlatformLoginURL builds the platform's login URL with the given
	// post-login destination.
	PlatformLoginURL func(destURL string) string
}

// Runtime derives per-course LTI state from the platform configuration. The
// tool and security YAML is parsed once at construction.
type Runtime struct {
	config   RuntimeConfig
	tools    map[string]ToolConfig
	security map[string]SecurityConfig
}

// NewRuntime parses the course's tool and security configuration. Bad YAML is
// surfaced rather than recovered from, so admins discover broken settings fast.
func NewRuntime(config RuntimeConfig) (*Runtime, error) {
	tools, err := ParseTools(config.Settings.Tools)
	if err != nil {
		return nil, fmt.Errorf("tools config: %w", err)
	}
	security, err := ParseSecurity(config.Settings.Security)
	if err != nil {
		return nil, fmt.Errorf("security config: %w", err)
	}
	return &Runtime{config: config, tools: tools, security: security}, nil
}

// BaseURL returns the course slug.
func (rt *Runtime) BaseURL() string {
	return rt.config.Settings.Slug
}

func (rt *Runtime) CourseBrowsable() bool {
	return rt.config.Settings.Browsable
}

// ProviderEnabled reports whether the provider endpoint is live, which requires
// both the deployment-level switch and the course-level setting.
func (rt *Runtime) ProviderEnabled() bool {
	return rt.config.ProviderAllowed && rt.config.Settings.ProviderEnabled
}

// DefaultResourceLinkID is the course slug with slashes stripped.
func (rt *Runtime) DefaultResourceLinkID() string {
	return strings.Trim(rt.config.Settings.Slug, "/")
}

// ToolConfig looks up a consumer tool by name.
func (rt *Runtime) ToolConfig(name string) (ToolConfig, bool) {
	config, ok := rt.tools[name]
	return config, ok
}

// ToolConfigs returns all configured consumer tools by name.
func (rt *Runtime) ToolConfigs() map[string]ToolConfig {
	return rt.tools
}

// SecurityConfig looks up a provider credential pair by consumer key.
func (rt *Runtime) SecurityConfig(key string) (SecurityConfig, bool) {
	config, ok := rt.security[key]
	return config, ok
}

// LaunchURL builds the slug-relative URL that renders the auto-submitting
// launch form for the named tool. extraFields, if non-empty, is an encoded
// extra-field payload from fields.EncodeExtra.
func (rt *Runtime) LaunchURL(name, resourceLinkID, returnURL, extraFields string) string {
	query := url.Values{
		"name":                             {name},
		fields.LaunchPresentationReturnURL: {returnURL},
		fields.ResourceLinkID:              {resourceLinkID},
	}
	if extraFields != "" {
		query.Set("extra_fields", extraFields)
	}
	return JoinPath(rt.BaseURL(), LaunchPath) + "?" + query.Encode()
}

// LoginURL builds the platform login URL whose post-login destination bounces
// through the redirect endpoint back to returnURL.
func (rt *Runtime) LoginURL(returnURL string) string {
	query := url.Values{fields.LaunchPresentationReturnURL: {returnURL}}
	dest := JoinPath(rt.BaseURL(), RedirectPath) + "?" + query.Encode()
	if rt.config.PlatformLoginURL == nil {
		return dest
	}
	return rt.config.PlatformLoginURL(dest)
}

// CurrentUser returns the authenticated user for the request, or nil.
func (rt *Runtime) CurrentUser(r *http.Request) *User {
	if rt.config.Users == nil {
		return nil
	}
	return rt.config.Users.CurrentUser(r)
}

// UserID returns the externally visible ID for the request's user, or "" if
// there is none. The ID is an HMAC over the user's email keyed by deployment
// and course, so providers cannot correlate users across courses.
func (rt *Runtime) UserID(r *http.Request) string {
	user := rt.CurrentUser(r)
	if user == nil {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(rt.config.AppID+"/"+rt.config.Settings.Slug))
	mac.Write([]byte(user.Email))
	return hex.EncodeToString(mac.Sum(nil))
}
