package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotificationOutboxDue = "notification.outbox.due"

const TaskCommissionRecalc = "commissions.recalculate"

type NotificationOutboxDuePayload struct {
	OutboxID       string `json:"outboxId"`
	OrganizationID string `json:"organizationId"`
}

type CommissionRecalcPayload struct {
	OrganizationID string `json:"organizationId"`
	LeadID         string `json:"leadId"`
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}

func NewCommissionRecalcTask(payload CommissionRecalcPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionRecalc, data), nil
}

func ParseCommissionRecalcPayload(task *asynq.Task) (CommissionRecalcPayload, error) {
	var payload CommissionRecalcPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CommissionRecalcPayload{}, err
	}
	return payload, nil
}
