package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/abhisek/speakbot/internal/exam"
)

// sample reads the counter or gauge value of the series matching name and
// the given label pairs. Missing series read as zero.
func sample(m *Manager, name string, labels ...string) float64 {
	families, err := m.Registry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, metric := range f.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if got[labels[i]] != labels[i+1] {
					continue series
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager on its own registry", t, func() {
		m := NewManager(WithRegistry(prometheus.NewRegistry()))

		Convey("When exam flow events are observed", func() {
			m.TaskSelected(1)
			m.TaskSelected(1)
			m.PartStarted(1, 0)
			m.Answer(exam.OutcomeRecorded)
			m.Answer(exam.OutcomeTimedOut)
			m.Answer(exam.OutcomeRecorded)
			m.Evaluation(true, 2*time.Second)
			m.Evaluation(false, time.Second)
			m.AccessDenied()
			m.AccessGranted()
			m.ActiveSessions(3)

			Convey("Then the counters reflect them", func() {
				So(sample(m, "speakbot_exam_tasks_selected_total", "task", "1"), ShouldEqual, 2.0)
				So(sample(m, "speakbot_exam_parts_started_total", "task", "1", "part", "0"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_exam_answers_total", "outcome", "recorded"), ShouldEqual, 2.0)
				So(sample(m, "speakbot_exam_answers_total", "outcome", "timed_out"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_exam_evaluations_total", "result", "success"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_exam_evaluations_total", "result", "failure"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_exam_access_denied_total"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_exam_access_granted_total"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_exam_active_sessions"), ShouldEqual, 3.0)
			})
		})

		Convey("When updates are handled", func() {
			m.UpdateHandled("voice", 10*time.Millisecond, nil)
			m.UpdateHandled("action", time.Millisecond, errors.New("boom"))
			m.Panic()

			Convey("Then errors are counted per kind", func() {
				So(sample(m, "speakbot_bot_updates_total", "kind", "voice"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_bot_update_errors_total", "kind", "action"), ShouldEqual, 1.0)
				So(sample(m, "speakbot_bot_update_errors_total", "kind", "voice"), ShouldEqual, 0.0)
				So(sample(m, "speakbot_bot_handler_panics_total"), ShouldEqual, 1.0)
			})
		})

		Convey("When the handler is scraped", func() {
			m.AccessGranted()
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then metrics are exposed with the namespace", func() {
				So(rec.Code, ShouldEqual, 200)
				So(string(body), ShouldContainSubstring, "speakbot_exam_access_granted_total 1")
			})
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	Convey("Given custom options", t, func() {
		m := NewManager(
			WithNamespace("test"),
			WithSubsystem("flow"),
			WithHistogramBuckets([]float64{1, 2}),
			WithRuntimeCollectors(),
		)

		Convey("Then names and collectors follow them", func() {
			m.AccessDenied()
			families, err := m.Registry().Gather()
			So(err, ShouldBeNil)

			var names []string
			for _, f := range families {
				names = append(names, f.GetName())
			}
			joined := strings.Join(names, ",")
			So(joined, ShouldContainSubstring, "test_flow_access_denied_total")
			So(joined, ShouldContainSubstring, "go_goroutines")
		})
	})
}

func TestServeStopsWithContext(t *testing.T) {
	Convey("Given a metrics server", t, func() {
		m := NewManager()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- m.Serve(ctx, "127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
		}()

		Convey("When the context is cancelled", func() {
			cancel()

			Convey("Then Serve returns cleanly", func() {
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(5 * time.Second):
					So("timeout", ShouldBeEmpty)
				}
			})
		})
	})
}
