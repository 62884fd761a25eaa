// Package appinfo defines the status contract between the harness and the course
// application under test: the status document returned from the status resource, the
// capability names the application may advertise, and the REST paths and request bodies
// the harness drives.
package appinfo

import "github.com/coursekit/lti-test-harness/framework"

const (
	// CapabilityLTIConsumer means the application can embed external LTI tools and
	// exposes the launch, login, and redirect endpoints under each course.
	CapabilityLTIConsumer = "lti-consumer"

	// CapabilityLTIProvider means the application accepts signed LTI launch requests
	// from other systems at each course's validation endpoint.
	CapabilityLTIProvider = "lti-provider"

	// CapabilityActivityStream means the application publishes course events on a
	// server-sent-events feed at ActivityPath.
	CapabilityActivityStream = "activity-stream"

	// CapabilityBrowsableCourses means courses can be made readable without login.
	CapabilityBrowsableCourses = "browsable-courses"
)

const (
	StatusPath   = "/api/status"
	LoginPath    = "/login"
	LogoutPath   = "/logout"
	CoursesPath  = "/api/courses"
	ActivityPath = "/api/activity"
)

func CoursePath(name string) string       { return CoursesPath + "/" + name }
func EnrollPath(name string) string       { return CoursePath(name) + "/enroll" }
func AvailabilityPath(name string) string { return CoursePath(name) + "/availability" }
func LTIConfigPath(name string) string    { return CoursePath(name) + "/lti-config" }

// Course availability values, as presented in the course admin UI.
const (
	AvailabilityPublic               = "Public - No Registration"
	AvailabilityPrivate              = "Private"
	AvailabilityRegistrationRequired = "Registration Required"
	AvailabilityRegistrationOptional = "Registration Optional"
)

// Status is the JSON document returned from StatusPath.
type Status struct {
	// Name is the name of the application, such as "coursekit-demo".
	Name string `json:"name"`

	// Capabilities is a list of strings representing optional features of the application.
	Capabilities framework.Capabilities `json:"capabilities"`
}

type LoginParams struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

type CreateCourseParams struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	AdminEmail string `json:"adminEmail"`
}

type AvailabilityParams struct {
	Availability string   `json:"availability"`
	Whitelist    []string `json:"whitelist,omitempty"`
}

type EnrollParams struct {
	StudentName string `json:"studentName"`
}

// LTIConfigParams configures the LTI integration of one course. Tools and Security are
// raw YAML documents in the formats accepted by the lti package parsers.
type LTIConfigParams struct {
	ProviderEnabled bool   `json:"providerEnabled"`
	Browsable       bool   `json:"browsable"`
	Tools           string `json:"tools,omitempty"`
	Security        string `json:"security,omitempty"`
}

// ActivityEvent is the payload of events published on the activity stream.
type ActivityEvent struct {
	Kind   string `json:"kind"` // "course-created", "enrolled", "unenrolled"
	Course string `json:"course"`
	Email  string `json:"email,omitempty"`
}

const (
	ActivityCourseCreated = "course-created"
	ActivityEnrolled      = "enrolled"
)
