package coursetests

import (
	"net/http"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/ltest"
)

func doLoginTests(t *ltest.T) {
	t.Run("login requires an email", func(t *ltest.T) {
		client := NewAppClient(t)
		resp, _ := client.do("POST", appinfo.LoginPath, appinfo.LoginParams{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for a login with no email, got %d", resp.StatusCode)
		}
	})

	t.Run("a session persists across requests", func(t *ltest.T) {
		client := NewAppClient(t)
		name, _ := client.CreateCourse()

		names := client.Courses()
		found := false
		for _, n := range names {
			if n == name {
				found = true
			}
		}
		if !found {
			t.Errorf("course %q created in this session is missing from the listing %v", name, names)
		}
	})

	t.Run("logout ends the session", func(t *ltest.T) {
		client := NewAppClient(t)
		client.Login(adminEmail, true)
		client.Logout()

		name, title := UniqueCourseName()
		resp, _ := client.do("POST", appinfo.CoursesPath, appinfo.CreateCourseParams{
			Name: name, Title: title, AdminEmail: adminEmail,
		})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status 403 for course creation after logout, got %d", resp.StatusCode)
		}
	})
}
