package domain

import "time"

// Session is the pending or most recently answered question of a conversant.
// A conversant holds at most one session; issuing a new question replaces it.
type Session struct {
	ConversantID string
	QuestionID   string
	// DisplayedText is the text shown to the conversant, IsScam its ground truth.
	DisplayedText string
	IsScam        bool
	// AlternateText is the other generated variant, kept for later reference.
	AlternateText string
	Answered      bool
	IssuedAt      time.Time
	AnsweredAt    time.Time
}

// Example is a pair of generated messages on the same topic.
type Example struct {
	ScamText  string
	LegitText string
}

type AnalysisRequest struct {
	Text      string
	IsScam    bool
	UserGuess bool
}

// AnswerCommit is applied atomically by a session store: the session's answered flag flips
// from false to true for QuestionID, and Delta is added to the conversant's score.
type AnswerCommit struct {
	ConversantID string
	QuestionID   string
	Delta        int
	AnsweredAt   time.Time
}

// Score represents a conversant's accumulated score.
type Score struct {
	ConversantID string
	Value        int
}

// Leaderboard is the ranked view of all scores, sorted by score in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Rank         int
	ConversantID string
	Score        int
}
