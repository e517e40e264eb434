// Package queue enqueues long-running analysis and test runs so API
// handlers can return immediately.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/promptlab/promptlab/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueAnalysisRun schedules a full five-dimension analysis of a version.
func (c *Client) EnqueueAnalysisRun(payload AnalysisRunPayload) error {
	return c.enqueue(TypeAnalysisRun, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

// EnqueueTestsRun schedules running a version's full test suite.
func (c *Client) EnqueueTestsRun(payload TestsRunPayload) error {
	return c.enqueue(TypeTestsRun, payload, asynq.MaxRetry(2), asynq.Timeout(15*time.Minute))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
