// Package command maps inbound chat text to the closed set of commands the game understands.
// Matching is exact against a fixed vocabulary; nothing here calls out of process.
package command

import (
	"net/url"
	"strings"
)

type Kind int

const (
	Unrecognized Kind = iota
	NewQuestion
	Answer
	RequestAnalysis
	QueryScore
	ShowLeaderboard
)

func (k Kind) String() string {
	switch k {
	case NewQuestion:
		return "new_question"
	case Answer:
		return "answer"
	case RequestAnalysis:
		return "request_analysis"
	case QueryScore:
		return "query_score"
	case ShowLeaderboard:
		return "show_leaderboard"
	default:
		return "unrecognized"
	}
}

// Command is a classified user action. Guess and QuestionID are set only for Answer;
// an empty QuestionID means the answer applies to whatever question is pending.
type Command struct {
	Kind       Kind
	Guess      bool
	QuestionID string
}

const (
	TextNewQuestion     = "出題"
	TextYes             = "是"
	TextNo              = "否"
	TextAnalysis        = "解析"
	TextScore           = "分數"
	TextLeaderboard     = "排行榜"
	postbackActionKey   = "action"
	postbackAnswer      = "answer"
	postbackGuessKey    = "guess"
	postbackQuestionKey = "qid"
	guessYes            = "yes"
	guessNo             = "no"
)

var vocabulary = map[string]Command{
	TextNewQuestion: {Kind: NewQuestion},
	"new question":  {Kind: NewQuestion},
	TextYes:         {Kind: Answer, Guess: true},
	guessYes:        {Kind: Answer, Guess: true},
	TextNo:          {Kind: Answer, Guess: false},
	guessNo:         {Kind: Answer, Guess: false},
	TextAnalysis:    {Kind: RequestAnalysis},
	"analyze":       {Kind: RequestAnalysis},
	TextScore:       {Kind: QueryScore},
	"score":         {Kind: QueryScore},
	TextLeaderboard: {Kind: ShowLeaderboard},
	"leaderboard":   {Kind: ShowLeaderboard},
}

// Parse classifies free text. Surrounding whitespace is ignored and latin letters are
// case-folded; anything outside the vocabulary is Unrecognized.
func Parse(text string) Command {
	if c, ok := vocabulary[strings.ToLower(strings.TrimSpace(text))]; ok {
		return c
	}
	return Command{Kind: Unrecognized}
}

// ParsePostback classifies button postback data produced by AnswerData.
func ParsePostback(data string) Command {
	v, err := url.ParseQuery(data)
	if err != nil || v.Get(postbackActionKey) != postbackAnswer {
		return Command{Kind: Unrecognized}
	}

	qid := v.Get(postbackQuestionKey)
	if qid == "" {
		return Command{Kind: Unrecognized}
	}

	switch v.Get(postbackGuessKey) {
	case guessYes:
		return Command{Kind: Answer, Guess: true, QuestionID: qid}
	case guessNo:
		return Command{Kind: Answer, Guess: false, QuestionID: qid}
	default:
		return Command{Kind: Unrecognized}
	}
}

// AnswerData encodes an answer bound to questionID as postback data.
func AnswerData(questionID string, guess bool) string {
	g := guessNo
	if guess {
		g = guessYes
	}

	v := url.Values{}
	v.Set(postbackActionKey, postbackAnswer)
	v.Set(postbackGuessKey, g)
	v.Set(postbackQuestionKey, questionID)
	return v.Encode()
}
