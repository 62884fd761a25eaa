package coursetests

import (
	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework/ltest"
)

func doActivityStreamTests(t *ltest.T) {
	t.RequireCapability(appinfo.CapabilityActivityStream)

	t.Run("course creation is published", func(t *ltest.T) {
		client := NewAppClient(t)
		sub := client.SubscribeActivity()

		name, _ := client.CreateCourse()
		event := awaitActivityEvent(t, sub, appinfo.ActivityCourseCreated, name)
		if event.Email != adminEmail {
			t.Errorf("course-created event carries email %q, expected %q", event.Email, adminEmail)
		}
	})

	t.Run("enrollments are published", func(t *ltest.T) {
		client := NewAppClient(t)
		name, _ := client.CreateCourse()
		client.InitAvailabilityAndWhitelist(name, appinfo.AvailabilityRegistrationOptional, nil)

		sub := client.SubscribeActivity()

		student := Person{Email: "test1@example.com", Name: "Test1 Student"}
		client.EnrollStudents(name, []Person{student})

		event := awaitActivityEvent(t, sub, appinfo.ActivityEnrolled, name)
		if event.Email != student.Email {
			t.Errorf("enrolled event carries email %q, expected %q", event.Email, student.Email)
		}
	})
}

// awaitActivityEvent reads from the subscription until an event with the given
// kind and course arrives, skipping events from unrelated activity. The test
// fails if the stream goes quiet first.
func awaitActivityEvent(
	t *ltest.T, sub *ActivitySubscription, kind, course string,
) appinfo.ActivityEvent {
	for {
		event := sub.RequireEvent(t)
		if event.Kind == kind && event.Course == course {
			return event
		}
		t.Debug("skipping activity event %+v", event)
	}
}
