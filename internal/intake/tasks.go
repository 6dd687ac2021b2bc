package intake

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskMessageProcess asks the worker to process one message. Producers
// enqueue it when a message lands; the sweep enqueues it for anything the
// push path missed.
const TaskMessageProcess = "message.process"

// TaskMessageSweep re-enqueues all currently unprocessed messages.
const TaskMessageSweep = "message.sweep"

// TaskMessageReclaim releases stale claims left by crashed attempts.
const TaskMessageReclaim = "message.reclaim"

type MessageProcessPayload struct {
	MessageID string `json:"messageId"`
}

func NewMessageProcessTask(payload MessageProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMessageProcess, data), nil
}

func ParseMessageProcessPayload(task *asynq.Task) (MessageProcessPayload, error) {
	var payload MessageProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MessageProcessPayload{}, err
	}
	return payload, nil
}

func NewMessageSweepTask() *asynq.Task {
	return asynq.NewTask(TaskMessageSweep, nil)
}

func NewMessageReclaimTask() *asynq.Task {
	return asynq.NewTask(TaskMessageReclaim, nil)
}
