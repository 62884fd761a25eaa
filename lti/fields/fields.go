// Package fields provides the field set of LTI 1.2. See spec at
// http://www.imsglobal.org/lti/ltiv1p2pd/ltiIMGv1p2pd.html.
package fields

import (
	"sort"
	"strings"
)

// Fields in the LTI spec.
const (
	ContextID                          = "context_id"
	ContextLabel                       = "context_label"
	ContextTitle                       = "context_title"
	ContextType                        = "context_type"
	LaunchPresentationCSSURL           = "launch_presentation_css_url"
	LaunchPresentationDocumentTarget   = "launch_presentation_document_target"
	LaunchPresentationHeight           = "launch_presentation_height"
	LaunchPresentationLocale           = "launch_presentation_locale"
	LaunchPresentationReturnURL        = "launch_presentation_return_url"
	LaunchPresentationWidth            = "launch_presentation_width"
	LISPersonContactEmailPrimary       = "lis_person_contact_email_primary"
	LISPersonNameFamily                = "lis_person_name_family"
	LISPersonNameFull                  = "lis_person_name_full"
	LISPersonNameGiven                 = "lis_person_name_given"
	LTIMessageType                     = "lti_message_type"
	LTIVersion                         = "lti_version"
	ResourceLinkDescription            = "resource_link_description"
	ResourceLinkID                     = "resource_link_id"
	ResourceLinkTitle                  = "resource_link_title"
	RoleScopeMentor                    = "role_scope_mentor"
	Roles                              = "roles"
	ToolConsumerInfoProductFamilyCode  = "tool_consumer_info_product_family_code"
	ToolConsumerInfoVersion            = "tool_consumer_info_version"
	ToolConsumerInstanceContactEmail   = "tool_consumer_instance_contact_email"
	ToolConsumerInstanceDescription    = "tool_consumer_instance_description"
	ToolConsumerInstanceGUID           = "tool_consumer_instance_guid"
	ToolConsumerInstanceName           = "tool_consumer_instance_name"
	ToolConsumerInstanceURL            = "tool_consumer_instance_url"
	UserID                             = "user_id"
	UserImage                          = "user_image"
)

// CustomPrefix is the reserved prefix for vendor extension fields. Any field whose
// name begins with it is accepted without further validation.
const CustomPrefix = "custom_"

// Extension fields.
const (
	// CustomForceLogin controls whether to force login when a course is operating
	// as an LTI provider and the course is browsable. To avoid bad UX, this does
	// not force a login if the user already has credentials with the course.
	CustomForceLogin = CustomPrefix + "cb_force_login"

	// CustomResource is the course resource to redirect to once validation has
	// passed. Required on incoming launch requests handled by providers. The
	// resource is relative to the course slug (for example, "foo" in
	// "http://example.com/my_course/foo").
	CustomResource = CustomPrefix + "cb_resource"
)

const (
	// MessageTypeLaunchRequest is the only lti_message_type value accepted by
	// this implementation.
	MessageTypeLaunchRequest = "basic-lti-launch-request"

	// VersionLTI1p0 is the only lti_version value accepted by this implementation.
	VersionLTI1p0 = "LTI-1p0"

	// RoleStudent is the roles value used for launches on behalf of students.
	RoleStudent = "student"
)

var base = map[string]bool{
	ContextID:                         true,
	ContextLabel:                      true,
	ContextTitle:                      true,
	ContextType:                       true,
	LaunchPresentationCSSURL:          true,
	LaunchPresentationDocumentTarget:  true,
	LaunchPresentationHeight:          true,
	LaunchPresentationLocale:          true,
	LaunchPresentationReturnURL:       true,
	LaunchPresentationWidth:           true,
	LISPersonContactEmailPrimary:      true,
	LISPersonNameFamily:               true,
	LISPersonNameFull:                 true,
	LISPersonNameGiven:                true,
	LTIMessageType:                    true,
	LTIVersion:                        true,
	ResourceLinkDescription:           true,
	ResourceLinkID:                    true,
	ResourceLinkTitle:                 true,
	RoleScopeMentor:                   true,
	Roles:                             true,
	ToolConsumerInfoProductFamilyCode: true,
	ToolConsumerInfoVersion:           true,
	ToolConsumerInstanceContactEmail:  true,
	ToolConsumerInstanceDescription:   true,
	ToolConsumerInstanceGUID:          true,
	ToolConsumerInstanceName:          true,
	ToolConsumerInstanceURL:           true,
	UserID:                            true,
	UserImage:                         true,

	CustomForceLogin: true,
	CustomResource:   true,
}

// required fields in the LTI spec; does not include fields required by the provider.
var required = []string{
	LTIMessageType,
	LTIVersion,
	ResourceLinkID,
}

// Defaults returns the field values that Make fills in when the caller does not
// supply them.
func Defaults() map[string]string {
	return map[string]string{
		LTIMessageType: MessageTypeLaunchRequest,
		LTIVersion:     VersionLTI1p0,
	}
}

// Fields is a validated map of LTI field name to value, as produced by Make.
type Fields map[string]string

// InvalidFieldError means one or more supplied keys are outside the recognized
// LTI field set. Names is sorted. Serializing distinguishes the wording used
// when the keys came through EncodeExtra rather than Make.
type InvalidFieldError struct {
	Names       []string
	Serializing bool
}

func (e *InvalidFieldError) Error() string {
	if e.Serializing {
		return "Cannot serialize invalid fields: " + strings.Join(e.Names, ", ")
	}
	return "Cannot include bad fields: " + strings.Join(e.Names, ", ")
}

// MissingRequiredFieldError means one or more required LTI fields had neither a
// supplied value nor a default. Names is sorted.
type MissingRequiredFieldError struct {
	Names []string
}

func (e *MissingRequiredFieldError) Error() string {
	return "Missing required fields: " + strings.Join(e.Names, ", ")
}

// IsValidName reports whether name is in the LTI field set or carries the
// extension prefix.
func IsValidName(name string) bool {
	return base[name] || strings.HasPrefix(name, CustomPrefix)
}

// ValidMessageType reports whether messageType is the supported lti_message_type.
func ValidMessageType(messageType string) bool {
	return messageType == MessageTypeLaunchRequest
}

// ValidVersion reports whether version is the supported lti_version.
func ValidVersion(version string) bool {
	return version == VersionLTI1p0
}

// ValidResourceLinkID reports whether resourceLinkID is usable, which for our
// purposes only means non-empty.
func ValidResourceLinkID(resourceLinkID string) bool {
	return resourceLinkID != ""
}

// ForceLogin reads CustomForceLogin out of a request's field map. A missing
// value means false; only a case-insensitive "true" means true.
func ForceLogin(requestFields map[string]string) bool {
	value, ok := requestFields[CustomForceLogin]
	if !ok {
		return false
	}
	return strings.EqualFold(value, "true")
}

// Make builds a validated LTI post payload from the given field values.
//
// Defaults are applied for lti_message_type and lti_version; from must supply
// at least resource_link_id. The result must be signed before transport to an
// LTI provider.
//
// Returns an *InvalidFieldError if any key in from is not a valid LTI field,
// or a *MissingRequiredFieldError if a required field was neither given nor
// defaulted.
func Make(from map[string]string) (Fields, error) {
	defaults := Defaults()
	missing := make(map[string]bool)
	for _, name := range required {
		if _, ok := defaults[name]; !ok {
			missing[name] = true
		}
	}

	var badFields []string
	to := Fields(defaults)

	for k, v := range from {
		delete(missing, k)
		if !IsValidName(k) {
			badFields = append(badFields, k)
		} else {
			to[k] = v
		}
	}

	if len(badFields) > 0 {
		sort.Strings(badFields)
		return nil, &InvalidFieldError{Names: badFields}
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &MissingRequiredFieldError{Names: names}
	}

	return to, nil
}
