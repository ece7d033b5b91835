// internal/workers/scoring/score-records/handler.go
package scorerecords

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/common/validation"
	"inclusion-scoring/internal/models"
)

const (
	TaskType = "score-records"
)

// Scorer is the part of the endpoint handler the worker depends on.
type Scorer interface {
	ScoreRows(ctx context.Context, data []interface{}, source models.Source, requestID string) ([]interface{}, error)
	Info() models.ModelInfo
}

type Handler struct {
	config     *Config
	scorer     Scorer
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, scorer Scorer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		scorer:     scorer,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.reportError(client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	output, err := h.Execute(ctx, input)
	cancel()
	if err != nil {
		h.reportError(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// commandContext is used for broker calls so an exhausted scoring deadline
// does not leave the job to time out.
func (h *Handler) commandContext() (context.Context, context.CancelFunc) {
	timeout := h.config.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (h *Handler) reportError(client worker.JobClient, job entities.Job, err error) {
	ctx, cancel := h.commandContext()
	defer cancel()
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(job.Variables), &doc); err != nil {
		return nil, apperrors.NewParseError(err.Error(), err)
	}
	if result := validation.ValidateWorkerInput(doc); !result.Valid {
		return nil, apperrors.NewParseError(strings.Join(result.GetErrorMessages(), "; "), nil)
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewParseError(err.Error(), err)
	}
	if input.RequestID == "" {
		input.RequestID = "job-" + strconv.FormatInt(job.Key, 10)
	}
	return &input, nil
}

// Execute scores input.Data with the loaded model.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	labels, err := h.scorer.ScoreRows(ctx, input.Data, models.SourceWorker, input.RequestID)
	if err != nil {
		return nil, err
	}
	info := h.scorer.Info()
	return &Output{
		Result:       labels,
		ModelName:    info.Name,
		ModelVersion: info.Version,
		RowCount:     len(labels),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.reportError(client, job, err)
		return
	}

	ctx, cancel := h.commandContext()
	defer cancel()
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.Key,
		"rows":   output.RowCount,
	})
}
