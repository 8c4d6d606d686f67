package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/event"
)

const namespace = "scamquiz"

const (
	AnswerCorrect   = "correct"
	AnswerWrong     = "wrong"
	AnswerDuplicate = "duplicate"
	AnswerRejected  = "rejected"

	VariantScam  = "scam"
	VariantLegit = "legit"
)

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	commands      *prometheus.CounterVec
	questions     *prometheus.CounterVec
	answers       *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	modelRequests *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on r.
func NewMetrics(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Chat commands handled, by command.",
		}, []string{"command"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_issued_total",
			Help:      "Questions issued, by displayed variant.",
		}, []string{"variant"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answer submissions, by result.",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events received, by type.",
		}, []string{"type"}),
		modelRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of generative model requests, by operation.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.commands, m.questions, m.answers, m.webhookEvents, m.modelRequests} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Subscribe feeds the question and answer counters from quiz events.
func (m *Metrics) Subscribe(eb *event.Bus) {
	if m == nil || eb == nil {
		return
	}

	eb.Subscribe(domain.EventNameQuestionIssued, func(_ context.Context, e event.Event) error {
		if e.(domain.EventQuestionIssued).IsScam {
			m.questions.WithLabelValues(VariantScam).Inc()
		} else {
			m.questions.WithLabelValues(VariantLegit).Inc()
		}
		return nil
	})

	eb.Subscribe(domain.EventNameAnswerScored, func(_ context.Context, e event.Event) error {
		if e.(domain.EventAnswerScored).Correct {
			m.answers.WithLabelValues(AnswerCorrect).Inc()
		} else {
			m.answers.WithLabelValues(AnswerWrong).Inc()
		}
		return nil
	})

	eb.Subscribe(domain.EventNameAnswerRejected, func(_ context.Context, e event.Event) error {
		switch e.(domain.EventAnswerRejected).Reason {
		case domain.ReasonAlreadyAnswered, domain.ReasonConcurrentSubmission:
			m.answers.WithLabelValues(AnswerDuplicate).Inc()
		default:
			m.answers.WithLabelValues(AnswerRejected).Inc()
		}
		return nil
	})
}

func (m *Metrics) CountCommand(command string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
}

func (m *Metrics) CountWebhookEvent(typ string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(typ).Inc()
}

func (m *Metrics) ObserveModelRequest(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelRequests.WithLabelValues(operation).Observe(elapsed.Seconds())
}
