package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/scamquiz/internal/command"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		text string
		want command.Command
	}{
		"new question":           {text: "出題", want: command.Command{Kind: command.NewQuestion}},
		"new question english":   {text: "New Question", want: command.Command{Kind: command.NewQuestion}},
		"yes":                    {text: "是", want: command.Command{Kind: command.Answer, Guess: true}},
		"yes with spaces":        {text: "  是 \n", want: command.Command{Kind: command.Answer, Guess: true}},
		"no":                     {text: "否", want: command.Command{Kind: command.Answer, Guess: false}},
		"no english":             {text: "NO", want: command.Command{Kind: command.Answer, Guess: false}},
		"analysis":               {text: "解析", want: command.Command{Kind: command.RequestAnalysis}},
		"score":                  {text: "分數", want: command.Command{Kind: command.QueryScore}},
		"leaderboard":            {text: "排行榜", want: command.Command{Kind: command.ShowLeaderboard}},
		"not a prefix match":     {text: "出題吧", want: command.Command{Kind: command.Unrecognized}},
		"not a substring match":  {text: "我覺得是", want: command.Command{Kind: command.Unrecognized}},
		"empty":                  {text: "", want: command.Command{Kind: command.Unrecognized}},
		"free form conversation": {text: "請問這是詐騙嗎", want: command.Command{Kind: command.Unrecognized}},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, command.Parse(tt.text))
		})
	}
}

func TestParsePostback(t *testing.T) {
	tests := map[string]struct {
		data string
		want command.Command
	}{
		"answer yes round trip": {
			data: command.AnswerData("q-1", true),
			want: command.Command{Kind: command.Answer, Guess: true, QuestionID: "q-1"},
		},
		"answer no round trip": {
			data: command.AnswerData("q-2", false),
			want: command.Command{Kind: command.Answer, Guess: false, QuestionID: "q-2"},
		},
		"missing question id": {
			data: "action=answer&guess=yes",
			want: command.Command{Kind: command.Unrecognized},
		},
		"unknown guess": {
			data: "action=answer&guess=maybe&qid=q-1",
			want: command.Command{Kind: command.Unrecognized},
		},
		"unknown action": {
			data: "action=richmenu&qid=q-1",
			want: command.Command{Kind: command.Unrecognized},
		},
		"garbage": {
			data: "%zz",
			want: command.Command{Kind: command.Unrecognized},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, command.ParsePostback(tt.data))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "new_question", command.NewQuestion.String())
	assert.Equal(t, "unrecognized", command.Kind(99).String())
}
