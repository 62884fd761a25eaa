package coursetests

import (
	"net/http"
	"strings"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/ltest"
)

func doCourseManagementTests(t *ltest.T) {
	t.Run("an admin can create a course", func(t *ltest.T) {
		client := NewAppClient(t)
		name, title := client.CreateCourse()

		resp, body := client.LoadCoursePage(name)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 loading the new course as its admin, got %d", resp.StatusCode)
			t.FailNow()
		}
		if !strings.Contains(body, title) {
			t.Errorf("course page does not show the course title %q", title)
		}
	})

	t.Run("course creation requires an admin session", func(t *ltest.T) {
		client := NewAppClient(t)
		client.Login("student@example.com", false)

		name, title := UniqueCourseName()
		resp, _ := client.do("POST", appinfo.CoursesPath, appinfo.CreateCourseParams{
			Name: name, Title: title, AdminEmail: adminEmail,
		})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status 403 for course creation by a non-admin, got %d", resp.StatusCode)
		}
	})

	t.Run("course names must be unique", func(t *ltest.T) {
		client := NewAppClient(t)
		name, title := client.CreateCourse()

		resp, _ := client.do("POST", appinfo.CoursesPath, appinfo.CreateCourseParams{
			Name: name, Title: title, AdminEmail: adminEmail,
		})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected status 409 for a duplicate course name, got %d", resp.StatusCode)
		}
	})

	t.Run("new courses are private", func(t *ltest.T) {
		admin := NewAppClient(t)
		name, _ := admin.CreateCourse()

		visitor := NewAppClient(t)
		resp, _ := visitor.Get("/" + name)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status 403 loading a new course anonymously, got %d", resp.StatusCode)
		}
	})

	t.Run("public courses are readable without login", func(t *ltest.T) {
		t.RequireCapability(appinfo.CapabilityBrowsableCourses)

		admin := NewAppClient(t)
		name, title := admin.CreateCourse()
		admin.InitAvailabilityAndWhitelist(name, appinfo.AvailabilityPublic, nil)

		visitor := NewAppClient(t)
		resp, body := visitor.Get("/" + name)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 loading a public course anonymously, got %d", resp.StatusCode)
			t.FailNow()
		}
		if !strings.Contains(body, title) {
			t.Errorf("course page does not show the course title %q", title)
		}
	})
}
