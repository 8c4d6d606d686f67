package domain

const (
	EventNameQuestionIssued = "question.issued"
	EventNameAnswerScored   = "answer.scored"
	EventNameAnswerRejected = "answer.rejected"
)

type EventQuestionIssued struct {
	ConversantID string
	QuestionID   string
	IsScam       bool
}

func (EventQuestionIssued) Name() string { return EventNameQuestionIssued }

type EventAnswerScored struct {
	ConversantID string
	QuestionID   string
	Correct      bool
	Delta        int
	Score        int
}

func (EventAnswerScored) Name() string { return EventNameAnswerScored }

// EventAnswerRejected is published when a submission is refused without touching the score.
type EventAnswerRejected struct {
	ConversantID string
	QuestionID   string
	Reason       string
}

func (EventAnswerRejected) Name() string { return EventNameAnswerRejected }
