// Package coursetests contains the end-to-end test suites that the harness
// runs against a course application.
package coursetests

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/harness"
	"github.com/coursekit/lti-test-harness/framework/helpers"
	"github.com/coursekit/lti-test-harness/framework/ltest"
)

const (
	adminEmail = "admin@example.com"

	pageLoadRetries    = 10
	pageLoadRetryDelay = 500 * time.Millisecond
)

// SuiteContext is the application-defined context attached to every test scope
// in the suite.
type SuiteContext struct {
	harness *harness.Harness
}

// Harness returns the active harness from a test scope.
func Harness(t *ltest.T) *harness.Harness {
	return t.Context().(*SuiteContext).harness
}

// Person describes one generated user for enrollment flows.
type Person struct {
	Email string
	Name  string
	Admin bool
}

// AppClient drives the application under test the way a browser session
// would: one cookie jar per client, so each client is one logged-in user at a
// time.
type AppClient struct {
	baseURL    string
	httpClient *http.Client
	t          *ltest.T
}

// NewAppClient creates a client bound to a test scope. Request failures are
// reported through the scope.
func NewAppClient(t *ltest.T) *AppClient {
	jar, err := cookiejar.New(nil)
	if err != nil {
		panic(err)
	}
	return &AppClient{
		baseURL: Harness(t).AppBaseURL(),
		httpClient: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		t: t,
	}
}

// UniqueCourseName generates a course name and title that will not collide
// with any other test's.
func UniqueCourseName() (name, title string) {
	uid := makeUID()
	return "ns_" + uid, fmt.Sprintf("Test Course (%s)", uid)
}

func makeUID() string {
	const chars = "abcdefghijklmnopqrstuvwxyz1234567890"
	b := make([]byte, 10)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return string(b)
}

// SomeStudents generates count people appropriate for the availability value.
// Private courses get only admins; registration courses get a mix with more
// students than admins.
func SomeStudents(availability string, count int) []Person {
	adminChoices := []bool{true, false, false}
	if availability == appinfo.AvailabilityPrivate {
		adminChoices = []bool{true}
	}

	people := make([]Person, 0, count)
	for i := 1; i <= count; i++ {
		admin := adminChoices[rand.Intn(len(adminChoices))]
		user, name := "test", "Student"
		if admin {
			user, name = "admin", "Admin"
		}
		people = append(people, Person{
			Email: fmt.Sprintf("%s%d@example.com", user, i),
			Name:  fmt.Sprintf("Test%d %s", i, name),
			Admin: admin,
		})
	}
	return people
}

func (c *AppClient) do(method, path string, body interface{}) (*http.Response, []byte) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Errorf("could not marshal request body: %s", err)
			c.t.FailNow()
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		c.t.Errorf("could not create request: %s", err)
		c.t.FailNow()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.t.Debug("%s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.t.Errorf("%s %s failed: %s", method, path, err)
		c.t.FailNow()
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return resp, respBody
}

func (c *AppClient) requireStatus(expected int, resp *http.Response, body []byte) {
	if resp.StatusCode != expected {
		c.t.Errorf("expected status %d from %s but got %d (%s)",
			expected, resp.Request.URL, resp.StatusCode, string(body))
		c.t.FailNow()
	}
}

// Login starts a session for the given user, replacing any current session.
func (c *AppClient) Login(email string, admin bool) {
	resp, body := c.do("POST", appinfo.LoginPath, appinfo.LoginParams{Email: email, Admin: admin})
	c.requireStatus(200, resp, body)
}

// LoginPerson is shorthand for Login with a generated Person.
func (c *AppClient) LoginPerson(person Person) {
	c.Login(person.Email, person.Admin)
}

func (c *AppClient) Logout() {
	resp, body := c.do("POST", appinfo.LogoutPath, nil)
	c.requireStatus(200, resp, body)
}

// CreateCourse logs in as an admin and creates a fresh uniquely-named course.
func (c *AppClient) CreateCourse() (name, title string) {
	name, title = UniqueCourseName()
	c.Login(adminEmail, true)
	resp, body := c.do("POST", appinfo.CoursesPath, appinfo.CreateCourseParams{
		Name:       name,
		Title:      title,
		AdminEmail: adminEmail,
	})
	c.requireStatus(201, resp, body)
	return name, title
}

// Courses lists the registered course names.
func (c *AppClient) Courses() []string {
	resp, body := c.do("GET", appinfo.CoursesPath, nil)
	c.requireStatus(200, resp, body)
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		c.t.Errorf("malformed course list: %s", err)
		c.t.FailNow()
	}
	return names
}

// InitAvailabilityAndWhitelist sets a course's availability and, for
// registration courses, its whitelist.
func (c *AppClient) InitAvailabilityAndWhitelist(course, availability string, emails []string) {
	resp, body := c.do("PUT", appinfo.AvailabilityPath(course), appinfo.AvailabilityParams{
		Availability: availability,
		Whitelist:    emails,
	})
	c.requireStatus(200, resp, body)
}

// Enroll registers the current session's user in the course.
func (c *AppClient) Enroll(course, studentName string) {
	resp, body := c.do("POST", appinfo.EnrollPath(course),
		appinfo.EnrollParams{StudentName: studentName})
	c.requireStatus(200, resp, body)
}

// EnrollStudents enrolls each Person in turn. The last person remains logged
// in afterwards.
func (c *AppClient) EnrollStudents(course string, students []Person) {
	for _, student := range students {
		c.LoginPerson(student)
		c.Enroll(course, student.Name)
	}
}

// ConfigureLTI sets a course's LTI configuration.
func (c *AppClient) ConfigureLTI(course string, params appinfo.LTIConfigParams) {
	resp, body := c.do("PUT", appinfo.LTIConfigPath(course), params)
	c.requireStatus(200, resp, body)
}

// LoadCoursePage fetches a course's content page, retrying while the
// application is still warming up.
func (c *AppClient) LoadCoursePage(course string) (*http.Response, string) {
	var resp *http.Response
	var body []byte
	for try := 0; try < pageLoadRetries; try++ {
		resp, body = c.do("GET", "/"+course, nil)
		if resp.StatusCode < 500 {
			break
		}
		time.Sleep(pageLoadRetryDelay)
	}
	return resp, string(body)
}

// Get fetches an arbitrary application path without redirect following.
func (c *AppClient) Get(path string) (*http.Response, string) {
	resp, body := c.do("GET", path, nil)
	return resp, string(body)
}

// PostForm sends an urlencoded form, as a submitted browser form would.
func (c *AppClient) PostForm(path string, form map[string]string) (*http.Response, string) {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req, err := http.NewRequest("POST", c.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		c.t.Errorf("could not create request: %s", err)
		c.t.FailNow()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.t.Debug("POST %s (form)", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.t.Errorf("POST %s failed: %s", path, err)
		c.t.FailNow()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// ActivitySubscription is a live subscription to the application's activity
// stream.
type ActivitySubscription struct {
	Events chan appinfo.ActivityEvent
	cancel context.CancelFunc
}

// SubscribeActivity opens the server-sent-events activity stream and parses
// events into a channel. The subscription is closed when the test scope exits.
func (c *AppClient) SubscribeActivity() *ActivitySubscription {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+appinfo.ActivityPath, nil)
	if err != nil {
		cancel()
		c.t.Errorf("could not create request: %s", err)
		c.t.FailNow()
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		c.t.Errorf("could not open activity stream: %s", err)
		c.t.FailNow()
	}
	if resp.StatusCode != 200 {
		cancel()
		c.t.Errorf("activity stream returned status %d", resp.StatusCode)
		c.t.FailNow()
	}

	sub := &ActivitySubscription{
		Events: make(chan appinfo.ActivityEvent, 100),
		cancel: cancel,
	}
	c.t.Cleanup(sub.Close)

	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var event appinfo.ActivityEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			if !helpers.NonBlockingSend(sub.Events, event) {
				return
			}
		}
	}()

	return sub
}

// RequireEvent waits for the next activity event, failing the test on timeout.
func (s *ActivitySubscription) RequireEvent(t *ltest.T) appinfo.ActivityEvent {
	return helpers.RequireValueWithMessage(t, s.Events, 5*time.Second,
		"timed out waiting for an activity stream event")
}

func (s *ActivitySubscription) Close() {
	s.cancel()
}
