// Package mockcourse is a minimal in-process course platform used to exercise
// the harness and its test suites. It supports session login, a course
// registry with availability and enrollment, an activity event stream, and a
// full LTI integration mounted under each course slug.
package mockcourse

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"html"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/exp/slices"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework"
	"github.com/coursekit/lti-test-harness/lti"
	"github.com/coursekit/lti-test-harness/lti/nonce"
)

const sessionCookieName = "mockcourse-session"

// Service is the mock course application. It implements the whole REST and
// LTI surface described by the appinfo package.
type Service struct {
	name     string
	appID    string
	activity *ActivityStream
	logger   framework.Logger
	router   *mux.Router

	// nonceStoreDSN selects the provider's replay-protection backend; empty
	// means per-course memory stores.
	nonceStoreDSN string

	lock     sync.RWMutex
	sessions map[string]session
	courses  map[string]*Course
}

type session struct {
	Email string
	Admin bool
}

// Course is one registered course and its state.
type Course struct {
	Name         string
	Title        string
	AdminEmail   string
	Availability string
	Whitelist    []string
	Enrollments  map[string]string // email -> student name
	LTI          appinfo.LTIConfigParams

	ltiService *lti.Service
}

func NewService(name string, logger framework.Logger) *Service {
	if logger == nil {
		logger = framework.NullLogger()
	}
	s := &Service{
		name:     name,
		appID:    name,
		activity: NewActivityStream(logger),
		logger:   logger,
		sessions: make(map[string]session),
		courses:  make(map[string]*Course),
	}

	router := mux.NewRouter()
	router.HandleFunc(appinfo.StatusPath, s.getStatus).Methods("GET")
	router.HandleFunc(appinfo.LoginPath, s.postLogin).Methods("POST")
	router.HandleFunc(appinfo.LogoutPath, s.postLogout).Methods("POST")
	router.HandleFunc(appinfo.CoursesPath, s.postCreateCourse).Methods("POST")
	router.HandleFunc(appinfo.CoursesPath, s.getCourses).Methods("GET")
	router.HandleFunc(appinfo.CoursesPath+"/{course}/availability", s.putAvailability).Methods("PUT")
	router.HandleFunc(appinfo.CoursesPath+"/{course}/enroll", s.postEnroll).Methods("POST")
	router.HandleFunc(appinfo.CoursesPath+"/{course}/lti-config", s.putLTIConfig).Methods("PUT")
	router.Handle(appinfo.ActivityPath, s.activity).Methods("GET")
	router.PathPrefix("/{course}/lti").HandlerFunc(s.serveLTI)
	router.PathPrefix("/{course}").HandlerFunc(s.serveCoursePage).Methods("GET")
	s.router = router

	return s
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// UseNonceStore points subsequently created courses at the nonce store backend
// named by the DSN (see nonce.NewStore). Useful when more than one instance of
// the application serves the same courses.
func (s *Service) UseNonceStore(dsn string) {
	s.nonceStoreDSN = dsn
}

// Status returns the status document the service serves from the status
// resource.
func (s *Service) Status() appinfo.Status {
	return appinfo.Status{
		Name: s.name,
		Capabilities: framework.Capabilities{
			appinfo.CapabilityLTIConsumer,
			appinfo.CapabilityLTIProvider,
			appinfo.CapabilityActivityStream,
			appinfo.CapabilityBrowsableCourses,
		},
	}
}

func (s *Service) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Status())
}

func (s *Service) postLogin(w http.ResponseWriter, r *http.Request) {
	var params appinfo.LoginParams
	if !readJSON(w, r, &params) {
		return
	}
	if params.Email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}

	token := newSessionToken()
	s.lock.Lock()
	s.sessions[token] = session{Email: params.Email, Admin: params.Admin}
	s.lock.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: token, Path: "/"})
	s.logger.Printf("Logged in %s", params.Email)
	w.WriteHeader(http.StatusOK)
}

func (s *Service) postLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.lock.Lock()
		delete(s.sessions, cookie.Value)
		s.lock.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusOK)
}

func (s *Service) currentSession(r *http.Request) (session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return session{}, false
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	sess, ok := s.sessions[cookie.Value]
	return sess, ok
}

func (s *Service) postCreateCourse(w http.ResponseWriter, r *http.Request) {
	sess, loggedIn := s.currentSession(r)
	if !loggedIn || !sess.Admin {
		http.Error(w, "admin login required", http.StatusForbidden)
		return
	}
	var params appinfo.CreateCourseParams
	if !readJSON(w, r, &params) {
		return
	}
	if params.Name == "" {
		http.Error(w, "course name required", http.StatusBadRequest)
		return
	}

	nonceStore, err := nonce.NewStore(r.Context(), s.nonceStoreDSN)
	if err != nil {
		s.logger.Printf("Bad nonce store configuration: %s", err)
		http.Error(w, "bad nonce store configuration", http.StatusInternalServerError)
		return
	}

	course := &Course{
		Name:         params.Name,
		Title:        params.Title,
		AdminEmail:   params.AdminEmail,
		Availability: appinfo.AvailabilityPrivate,
		Enrollments:  make(map[string]string),
	}
	course.ltiService = lti.NewService(
		s.runtimeGetter(course.Name), nonceStore, []byte(s.appID+"-xsrf"),
		framework.LoggerWithPrefix(s.logger, "["+course.Name+"] "))

	s.lock.Lock()
	if _, exists := s.courses[params.Name]; exists {
		s.lock.Unlock()
		http.Error(w, "course already exists", http.StatusConflict)
		return
	}
	s.courses[params.Name] = course
	s.lock.Unlock()

	s.activity.Publish(appinfo.ActivityEvent{
		Kind:   appinfo.ActivityCourseCreated,
		Course: params.Name,
		Email:  sess.Email,
	})
	w.WriteHeader(http.StatusCreated)
}

func (s *Service) getCourses(w http.ResponseWriter, r *http.Request) {
	s.lock.RLock()
	names := make([]string, 0, len(s.courses))
	for name := range s.courses {
		names = append(names, name)
	}
	s.lock.RUnlock()
	writeJSON(w, names)
}

func (s *Service) courseOr404(w http.ResponseWriter, r *http.Request) *Course {
	name := mux.Vars(r)["course"]
	s.lock.RLock()
	course := s.courses[name]
	s.lock.RUnlock()
	if course == nil {
		http.Error(w, "no such course", http.StatusNotFound)
	}
	return course
}

func (s *Service) putAvailability(w http.ResponseWriter, r *http.Request) {
	course := s.courseOr404(w, r)
	if course == nil {
		return
	}
	var params appinfo.AvailabilityParams
	if !readJSON(w, r, &params) {
		return
	}
	switch params.Availability {
	case appinfo.AvailabilityPublic, appinfo.AvailabilityPrivate,
		appinfo.AvailabilityRegistrationRequired, appinfo.AvailabilityRegistrationOptional:
	default:
		http.Error(w, "unknown availability", http.StatusBadRequest)
		return
	}

	s.lock.Lock()
	course.Availability = params.Availability
	course.Whitelist = params.Whitelist
	s.lock.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Service) postEnroll(w http.ResponseWriter, r *http.Request) {
	course := s.courseOr404(w, r)
	if course == nil {
		return
	}
	sess, loggedIn := s.currentSession(r)
	if !loggedIn {
		http.Error(w, "login required", http.StatusForbidden)
		return
	}
	var params appinfo.EnrollParams
	if !readJSON(w, r, &params) {
		return
	}

	s.lock.Lock()
	switch course.Availability {
	case appinfo.AvailabilityPrivate:
		s.lock.Unlock()
		http.Error(w, "course is private", http.StatusForbidden)
		return
	case appinfo.AvailabilityRegistrationRequired:
		if len(course.Whitelist) > 0 && !slices.Contains(course.Whitelist, sess.Email) {
			s.lock.Unlock()
			http.Error(w, "not on the course whitelist", http.StatusForbidden)
			return
		}
	}
	course.Enrollments[sess.Email] = params.StudentName
	s.lock.Unlock()

	s.activity.Publish(appinfo.ActivityEvent{
		Kind:   appinfo.ActivityEnrolled,
		Course: course.Name,
		Email:  sess.Email,
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Service) putLTIConfig(w http.ResponseWriter, r *http.Request) {
	course := s.courseOr404(w, r)
	if course == nil {
		return
	}
	var params appinfo.LTIConfigParams
	if !readJSON(w, r, &params) {
		return
	}
	s.lock.Lock()
	course.LTI = params
	s.lock.Unlock()
	w.WriteHeader(http.StatusOK)
}

// EnrolledStudents returns the enrolled email -> student name map of a course.
func (s *Service) EnrolledStudents(courseName string) map[string]string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	course := s.courses[courseName]
	if course == nil {
		return nil
	}
	students := make(map[string]string, len(course.Enrollments))
	for email, name := range course.Enrollments {
		students[email] = name
	}
	return students
}

func (s *Service) serveLTI(w http.ResponseWriter, r *http.Request) {
	course := s.courseOr404(w, r)
	if course == nil {
		return
	}
	http.StripPrefix("/"+course.Name, course.ltiService.Handler()).ServeHTTP(w, r)
}

// serveCoursePage renders a stand-in content page, which is what dispatched
// LTI launches and browsing students land on.
func (s *Service) serveCoursePage(w http.ResponseWriter, r *http.Request) {
	course := s.courseOr404(w, r)
	if course == nil {
		return
	}

	s.lock.RLock()
	availability := course.Availability
	title := course.Title
	browsable := course.LTI.Browsable || availability == appinfo.AvailabilityPublic
	s.lock.RUnlock()

	if _, loggedIn := s.currentSession(r); !loggedIn && !browsable {
		http.Error(w, "login required", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><h1>" + html.EscapeString(title) + "</h1></body></html>"))
}

// runtimeGetter builds the per-request runtime for a course's LTI service,
// reading the course's current settings so config edits take effect
// immediately.
func (s *Service) runtimeGetter(courseName string) func(*http.Request) (*lti.Runtime, error) {
	return func(r *http.Request) (*lti.Runtime, error) {
		s.lock.RLock()
		course := s.courses[courseName]
		var settings lti.CourseSettings
		if course != nil {
			settings = lti.CourseSettings{
				Slug:            "/" + course.Name,
				Browsable:       course.LTI.Browsable || course.Availability == appinfo.AvailabilityPublic,
				ProviderEnabled: course.LTI.ProviderEnabled,
				Tools:           course.LTI.Tools,
				Security:        course.LTI.Security,
			}
		}
		s.lock.RUnlock()

		return lti.NewRuntime(lti.RuntimeConfig{
			Settings:        settings,
			ProviderAllowed: true,
			AppID:           s.appID,
			Users:           sessionUserSource{s},
			PlatformLoginURL: func(dest string) string {
				return appinfo.LoginPath + "?dest=" + url.QueryEscape(dest)
			},
		})
	}
}

type sessionUserSource struct {
	service *Service
}

func (u sessionUserSource) CurrentUser(r *http.Request) *lti.User {
	sess, ok := u.service.currentSession(r)
	if !ok {
		return nil
	}
	return &lti.User{Email: sess.Email}
}

func newSessionToken() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf[:])
}

func writeJSON(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func readJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}
