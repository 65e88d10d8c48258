package standup

import (
	"fmt"
	"strings"
)

// Copy holds the user-facing text of a run. {name} in InitPrompt is replaced
// by the standup name.
type Copy struct {
	InitPrompt      string `mapstructure:"init_prompt"`
	StartLabel      string `mapstructure:"start_label"`
	NotWorkingLabel string `mapstructure:"not_working_label"`
	AnswerLabel     string `mapstructure:"answer_label"`
	Superseded      string `mapstructure:"superseded"`
	NotWorking      string `mapstructure:"not_working"`
	Started         string `mapstructure:"started"`
	Closed          string `mapstructure:"closed"`
}

func DefaultCopy() Copy {
	return Copy{
		InitPrompt:      "Ready to submit your daily standup for **{name}**?",
		StartLabel:      "Fill Standup",
		NotWorkingLabel: "⏭️ Not Working Today",
		AnswerLabel:     "Answer",
		Superseded:      "♻️ This prompt was replaced by a newer one.",
		NotWorking:      "✅ You are marked as not working today. It will show up in the team report.",
		Started:         "📝 Standup started! Answer the questions below.",
		Closed:          "⌛ This standup has closed.",
	}
}

func (c Copy) initContent(run Run) Content {
	return Content{
		Text: strings.ReplaceAll(c.InitPrompt, "{name}", run.Definition.Name),
		Buttons: []Button{
			{Label: c.StartLabel, ActionID: ActionID(run.ID, ActionStart, 0), Style: ButtonPrimary},
			{Label: c.NotWorkingLabel, ActionID: ActionID(run.ID, ActionNotWorking, 0), Style: ButtonSecondary},
		},
	}
}

func (c Copy) questionContent(run Run, idx int) Content {
	prompts := run.Definition.Prompts
	return Content{
		Title: fmt.Sprintf("%s (%d/%d)", run.Definition.Name, idx+1, len(prompts)),
		Text:  prompts[idx],
		Buttons: []Button{
			{Label: c.AnswerLabel, ActionID: ActionID(run.ID, ActionAnswer, idx), Style: ButtonPrimary},
		},
	}
}

func (c Copy) answeredContent(run Run, idx int, answer Answer) Content {
	return Content{
		Title:  fmt.Sprintf("✅ Question %d answered!", idx+1),
		Fields: []Field{{Name: answer.Prompt, Value: "👉 " + answer.Response}},
	}
}

func inert(text string) Content {
	return Content{Text: text}
}
