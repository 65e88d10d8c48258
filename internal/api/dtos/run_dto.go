package dtos

import "github.com/Gurkunwar/standupbot/internal/bot/standup"

type TriggerResponse struct {
	RunID string `json:"run_id"`
}

type MemberDTO struct {
	MemberID string `json:"member_id"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Answered int    `json:"answered"`
}

type RunStatusDTO struct {
	RunID   string      `json:"run_id"`
	State   string      `json:"state"`
	Error   string      `json:"error,omitempty"`
	Members []MemberDTO `json:"members"`
}

func NewRunStatusDTO(status standup.Status) RunStatusDTO {
	members := make([]MemberDTO, len(status.Members))
	for i, m := range status.Members {
		members[i] = MemberDTO{
			MemberID: m.MemberID,
			State:    m.State.String(),
			Reason:   string(m.Reason),
			Answered: m.Answered,
		}
	}

	return RunStatusDTO{
		RunID:   status.RunID,
		State:   status.State.String(),
		Error:   status.Error,
		Members: members,
	}
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
