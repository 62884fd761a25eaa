package mockcourse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/launchdarkly/eventsource"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework"
)

const activityChannel = "activity"

type eventSourceDebugLogger struct {
	logger framework.Logger
}

func (l eventSourceDebugLogger) Println(args ...interface{}) {
	l.logger.Printf("%s", fmt.Sprintln(args...))
}

func (l eventSourceDebugLogger) Printf(format string, args ...interface{}) {
	l.logger.Printf(format, args...)
}

// ActivityStream publishes course events over server-sent events.
type ActivityStream struct {
	stream      *eventsource.Server
	debugLogger framework.Logger
}

type eventImpl struct {
	name string
	data interface{}
}

func (e eventImpl) Event() string { return e.name }
func (e eventImpl) Id() string    { return "" } //nolint:stylecheck
func (e eventImpl) Data() string {
	bytes, _ := json.Marshal(e.data)
	return string(bytes)
}

func NewActivityStream(debugLogger framework.Logger) *ActivityStream {
	stream := eventsource.NewServer()
	stream.Logger = eventSourceDebugLogger{debugLogger}

	a := &ActivityStream{stream: stream, debugLogger: debugLogger}
	stream.Register(activityChannel, a)
	return a
}

func (a *ActivityStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a.stream.Handler(activityChannel)(w, r)
	a.debugLogger.Printf("End of activity stream request")
}

// Publish pushes one event to all current stream subscribers.
func (a *ActivityStream) Publish(event appinfo.ActivityEvent) {
	impl := eventImpl{name: event.Kind, data: event}
	a.debugLogger.Printf("sending %s event with data: %s", impl.Event(), impl.Data())
	a.stream.Publish([]string{activityChannel}, impl)
}

// Replay sends nothing; subscribers only see events published after they
// connect.
func (a *ActivityStream) Replay(channel, id string) chan eventsource.Event {
	eventsCh := make(chan eventsource.Event)
	close(eventsCh)
	return eventsCh
}
