package coursetests

import (
	"net/http"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/ltest"
)

func doEnrollmentTests(t *ltest.T) {
	t.Run("students can register when registration is required", func(t *ltest.T) {
		client := NewAppClient(t)
		name, _ := client.CreateCourse()

		students := SomeStudents(appinfo.AvailabilityRegistrationRequired, 4)
		emails := make([]string, 0, len(students))
		for _, s := range students {
			emails = append(emails, s.Email)
		}
		client.InitAvailabilityAndWhitelist(name, appinfo.AvailabilityRegistrationRequired, emails)
		client.EnrollStudents(name, students)

		resp, _ := client.LoadCoursePage(name)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 loading the course as an enrolled student, got %d",
				resp.StatusCode)
		}
	})

	t.Run("the whitelist is enforced", func(t *ltest.T) {
		client := NewAppClient(t)
		name, _ := client.CreateCourse()
		client.InitAvailabilityAndWhitelist(name, appinfo.AvailabilityRegistrationRequired,
			[]string{"someoneelse@example.com"})

		client.Login("outsider@example.com", false)
		resp, _ := client.do("POST", appinfo.EnrollPath(name),
			appinfo.EnrollParams{StudentName: "Outsider"})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status 403 enrolling off the whitelist, got %d", resp.StatusCode)
		}
	})

	t.Run("private courses refuse enrollment", func(t *ltest.T) {
		client := NewAppClient(t)
		name, _ := client.CreateCourse()

		admins := SomeStudents(appinfo.AvailabilityPrivate, 3)
		for _, person := range admins {
			if !person.Admin {
				t.Errorf("generated person %q for a private course is not an admin", person.Email)
			}
		}

		client.Login("student@example.com", false)
		resp, _ := client.do("POST", appinfo.EnrollPath(name),
			appinfo.EnrollParams{StudentName: "Student"})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status 403 enrolling in a private course, got %d", resp.StatusCode)
		}
	})

	t.Run("enrollment requires login", func(t *ltest.T) {
		admin := NewAppClient(t)
		name, _ := admin.CreateCourse()
		admin.InitAvailabilityAndWhitelist(name, appinfo.AvailabilityRegistrationOptional, nil)

		visitor := NewAppClient(t)
		resp, _ := visitor.do("POST", appinfo.EnrollPath(name),
			appinfo.EnrollParams{StudentName: "Anonymous"})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status 403 enrolling without a session, got %d", resp.StatusCode)
		}
	})
}
