package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/viralforge/procindex/internal/domain"
)

// The mappers are the relational entity codec: pure, bidirectional, and
// normalizing timestamps the same way in both directions so
// decode(encode(e)) == e holds field for field.

func toProcessInstanceModel(p domain.ProcessInstance) (processInstanceModel, error) {
	p.Normalize()
	roles, err := encodeJSON(p.Roles)
	if err != nil {
		return processInstanceModel{}, fmt.Errorf("encode roles of %q: %w", p.ID, err)
	}
	return processInstanceModel{
		ID:                      p.ID,
		ProcessID:               p.ProcessID,
		ProcessName:             p.ProcessName,
		Version:                 p.Version,
		State:                   string(p.State),
		BusinessKey:             p.BusinessKey,
		Endpoint:                p.Endpoint,
		Roles:                   roles,
		RootProcessInstanceID:   p.RootProcessInstanceID,
		ParentProcessInstanceID: p.ParentProcessInstanceID,
		Variables:               rawToString(p.Variables),
		StartedAt:               p.StartedAt,
		EndedAt:                 p.EndedAt,
		LastUpdate:              p.LastUpdate,
		LastSequence:            int64(p.LastSequence),
	}, nil
}

func toDomainProcessInstance(m processInstanceModel) (domain.ProcessInstance, error) {
	var roles []string
	if err := decodeJSON(m.Roles, &roles); err != nil {
		return domain.ProcessInstance{}, fmt.Errorf("decode roles of %q: %w", m.ID, err)
	}
	p := domain.ProcessInstance{
		ID:                      m.ID,
		ProcessID:               m.ProcessID,
		ProcessName:             m.ProcessName,
		Version:                 m.Version,
		State:                   domain.ProcessInstanceState(m.State),
		BusinessKey:             m.BusinessKey,
		Endpoint:                m.Endpoint,
		Roles:                   roles,
		RootProcessInstanceID:   m.RootProcessInstanceID,
		ParentProcessInstanceID: m.ParentProcessInstanceID,
		Variables:               stringToRaw(m.Variables),
		StartedAt:               m.StartedAt,
		EndedAt:                 m.EndedAt,
		LastUpdate:              m.LastUpdate,
		LastSequence:            uint64(m.LastSequence),
	}
	p.Normalize()
	return p, nil
}

func toUserTaskInstanceModel(t domain.UserTaskInstance) (userTaskInstanceModel, error) {
	t.Normalize()
	users, err := encodeJSON(t.PotentialUsers)
	if err != nil {
		return userTaskInstanceModel{}, fmt.Errorf("encode potential users of %q: %w", t.ID, err)
	}
	groups, err := encodeJSON(t.PotentialGroups)
	if err != nil {
		return userTaskInstanceModel{}, fmt.Errorf("encode potential groups of %q: %w", t.ID, err)
	}
	comments, err := encodeJSON(t.Comments)
	if err != nil {
		return userTaskInstanceModel{}, fmt.Errorf("encode comments of %q: %w", t.ID, err)
	}
	attachments, err := encodeJSON(t.Attachments)
	if err != nil {
		return userTaskInstanceModel{}, fmt.Errorf("encode attachments of %q: %w", t.ID, err)
	}
	return userTaskInstanceModel{
		ID:                t.ID,
		ProcessInstanceID: t.ProcessInstanceID,
		ProcessID:         t.ProcessID,
		Name:              t.Name,
		Description:       t.Description,
		State:             t.State,
		Priority:          t.Priority,
		ReferenceName:     t.ReferenceName,
		ActualOwner:       t.ActualOwner,
		PotentialUsers:    users,
		PotentialGroups:   groups,
		Inputs:            rawToString(t.Inputs),
		Outputs:           rawToString(t.Outputs),
		Comments:          comments,
		Attachments:       attachments,
		StartedAt:         t.StartedAt,
		CompletedAt:       t.CompletedAt,
		LastUpdate:        t.LastUpdate,
		LastSequence:      int64(t.LastSequence),
	}, nil
}

func toDomainUserTaskInstance(m userTaskInstanceModel) (domain.UserTaskInstance, error) {
	var users, groups []string
	var comments []domain.Comment
	var attachments []domain.Attachment
	if err := decodeJSON(m.PotentialUsers, &users); err != nil {
		return domain.UserTaskInstance{}, fmt.Errorf("decode potential users of %q: %w", m.ID, err)
	}
	if err := decodeJSON(m.PotentialGroups, &groups); err != nil {
		return domain.UserTaskInstance{}, fmt.Errorf("decode potential groups of %q: %w", m.ID, err)
	}
	if err := decodeJSON(m.Comments, &comments); err != nil {
		return domain.UserTaskInstance{}, fmt.Errorf("decode comments of %q: %w", m.ID, err)
	}
	if err := decodeJSON(m.Attachments, &attachments); err != nil {
		return domain.UserTaskInstance{}, fmt.Errorf("decode attachments of %q: %w", m.ID, err)
	}
	t := domain.UserTaskInstance{
		ID:                m.ID,
		ProcessInstanceID: m.ProcessInstanceID,
		ProcessID:         m.ProcessID,
		Name:              m.Name,
		Description:       m.Description,
		State:             m.State,
		Priority:          m.Priority,
		ReferenceName:     m.ReferenceName,
		ActualOwner:       m.ActualOwner,
		PotentialUsers:    users,
		PotentialGroups:   groups,
		Inputs:            stringToRaw(m.Inputs),
		Outputs:           stringToRaw(m.Outputs),
		Comments:          comments,
		Attachments:       attachments,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		LastUpdate:        m.LastUpdate,
		LastSequence:      uint64(m.LastSequence),
	}
	t.Normalize()
	return t, nil
}

func toJobModel(j domain.Job) (jobModel, error) {
	j.Normalize()
	return jobModel{
		ID:                j.ID,
		ProcessInstanceID: j.ProcessInstanceID,
		ProcessID:         j.ProcessID,
		Status:            string(j.Status),
		ExpirationTime:    j.ExpirationTime,
		Priority:          j.Priority,
		CallbackEndpoint:  j.CallbackEndpoint,
		RepeatInterval:    j.RepeatInterval,
		RepeatLimit:       j.RepeatLimit,
		ScheduledID:       j.ScheduledID,
		Retries:           j.Retries,
		ExecutionCounter:  j.ExecutionCounter,
		LastUpdate:        j.LastUpdate,
		LastSequence:      int64(j.LastSequence),
	}, nil
}

func toDomainJob(m jobModel) (domain.Job, error) {
	j := domain.Job{
		ID:                m.ID,
		ProcessInstanceID: m.ProcessInstanceID,
		ProcessID:         m.ProcessID,
		Status:            domain.JobStatus(m.Status),
		ExpirationTime:    m.ExpirationTime,
		Priority:          m.Priority,
		CallbackEndpoint:  m.CallbackEndpoint,
		RepeatInterval:    m.RepeatInterval,
		RepeatLimit:       m.RepeatLimit,
		ScheduledID:       m.ScheduledID,
		Retries:           m.Retries,
		ExecutionCounter:  m.ExecutionCounter,
		LastUpdate:        m.LastUpdate,
		LastSequence:      uint64(m.LastSequence),
	}
	j.Normalize()
	return j, nil
}

// encodeJSON writes nil slices as empty string so the round trip restores
// nil, not an empty collection.
func encodeJSON(v any) (string, error) {
	switch s := v.(type) {
	case []string:
		if s == nil {
			return "", nil
		}
	case []domain.Comment:
		if s == nil {
			return "", nil
		}
	case []domain.Attachment:
		if s == nil {
			return "", nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeJSON(s string, out any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}

func rawToString(r json.RawMessage) string {
	return string(r)
}

func stringToRaw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
