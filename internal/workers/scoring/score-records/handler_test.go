package scorerecords

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"inclusion-scoring/internal/common/config"
	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/models"
)

// ==========================
// Mock Scorer Implementation
// ==========================

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) ScoreRows(ctx context.Context, data []interface{}, source models.Source, requestID string) ([]interface{}, error) {
	args := m.Called(ctx, data, source, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interface{}), args.Error(1)
}

func (m *MockScorer) Info() models.ModelInfo {
	return models.ModelInfo{Name: "Capstone_Project", Version: "3", Format: "pmml-random-forest"}
}

// ==========================
// Test Helpers
// ==========================

func createMockJob(key int64, variables interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "loan-review",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_ScoreRecords",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Variables:                string(variablesJSON),
	}
	return entities.Job{ActivatedJob: activatedJob}
}

func createTestHandler(t *testing.T, scorer Scorer) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, scorer, logger.NewTestLogger(t))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockScorer{})

	tests := []struct {
		name      string
		variables interface{}
		wantErr   bool
		validate  func(*testing.T, *Input)
	}{
		{
			name: "positional rows with request id",
			variables: map[string]interface{}{
				"data":      []interface{}{[]interface{}{1, 25, "Kenya"}},
				"requestId": "req-1",
			},
			validate: func(t *testing.T, input *Input) {
				assert.Len(t, input.Data, 1)
				assert.Equal(t, "req-1", input.RequestID)
			},
		},
		{
			name: "object rows default the request id to the job key",
			variables: map[string]interface{}{
				"data": []interface{}{map[string]interface{}{"age": 25}},
			},
			validate: func(t *testing.T, input *Input) {
				assert.Equal(t, "job-42", input.RequestID)
			},
		},
		{
			name:      "missing data",
			variables: map[string]interface{}{"rows": []interface{}{}},
			wantErr:   true,
		},
		{
			name:      "data is not an array",
			variables: map[string]interface{}{"data": "1,2,3"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(42, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeParse))
				return
			}
			require.NoError(t, err)
			tt.validate(t, input)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	scorer := &MockScorer{}
	data := []interface{}{[]interface{}{1, 25, "Kenya"}, []interface{}{2, 61, "Peru"}}
	scorer.On("ScoreRows", mock.Anything, data, models.SourceWorker, "req-7").
		Return([]interface{}{int64(1), int64(0)}, nil)

	h := createTestHandler(t, scorer)
	output, err := h.Execute(context.Background(), &Input{Data: data, RequestID: "req-7"})

	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(0)}, output.Result)
	assert.Equal(t, "Capstone_Project", output.ModelName)
	assert.Equal(t, "3", output.ModelVersion)
	assert.Equal(t, 2, output.RowCount)
	scorer.AssertExpectations(t)
}

func TestHandler_Execute_Failure(t *testing.T) {
	scorer := &MockScorer{}
	scorer.On("ScoreRows", mock.Anything, mock.Anything, models.SourceWorker, mock.Anything).
		Return(nil, apperrors.NewSchemaMismatchError(0, 66, 2, "row 0 has 2 values, expected 66"))

	h := createTestHandler(t, scorer)
	output, err := h.Execute(context.Background(), &Input{Data: []interface{}{[]interface{}{1, 2}}})

	assert.Nil(t, output)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSchemaMismatch))
	assert.Equal(t, "SCHEMA_MISMATCH", apperrors.ConvertToBPMNError(apperrors.AsStandardError(err)).Code)
}

func TestHandler_OutputVariables(t *testing.T) {
	raw, err := json.Marshal(&Output{Result: []interface{}{int64(1)}, ModelName: "m", ModelVersion: "1", RowCount: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":[1],"modelName":"m","modelVersion":"1","rowCount":1}`, string(raw))
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 10*time.Second, LoadConfig(config.WorkerConfig{}).CommandTimeout)
}

// ==========================
// Job Lifecycle Tests
// ==========================

// fakeGateway records the broker calls a job client makes and whether the
// call context was still live when it arrived.
type fakeGateway struct {
	pb.GatewayClient

	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
	ctxErrs   []error
}

func (g *fakeGateway) CompleteJob(ctx context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.completed = append(g.completed, in)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return &pb.CompleteJobResponse{}, ctx.Err()
}

func (g *fakeGateway) FailJob(ctx context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.failed = append(g.failed, in)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return &pb.FailJobResponse{}, ctx.Err()
}

func (g *fakeGateway) ThrowError(ctx context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.thrown = append(g.thrown, in)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return &pb.ThrowErrorResponse{}, ctx.Err()
}

type fakeJobClient struct {
	gateway *fakeGateway
}

func noRetry(context.Context, error) bool { return false }

func (c *fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, noRetry)
}

func (c *fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, noRetry)
}

func (c *fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, noRetry)
}

func TestHandler_Handle_CompletesAfterSlowScoring(t *testing.T) {
	scorer := new(MockScorer)
	scorer.On("ScoreRows", mock.Anything, mock.Anything, models.SourceWorker, "job-42").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return([]interface{}{int64(1)}, nil)

	h := NewHandler(&Config{Timeout: 10 * time.Millisecond, CommandTimeout: time.Second}, scorer, logger.NewTestLogger(t))
	client := &fakeJobClient{gateway: &fakeGateway{}}

	h.Handle(client, createMockJob(42, map[string]interface{}{"data": []interface{}{[]interface{}{1}}}))

	require.Len(t, client.gateway.completed, 1)
	assert.Equal(t, int64(42), client.gateway.completed[0].JobKey)
	assert.JSONEq(t, `{"result":[1],"modelName":"Capstone_Project","modelVersion":"3","rowCount":1}`,
		client.gateway.completed[0].Variables)
	assert.Equal(t, []error{nil}, client.gateway.ctxErrs, "complete runs on a live context")
	scorer.AssertExpectations(t)
}

func TestHandler_Handle_ReportsErrorAfterDeadline(t *testing.T) {
	scorer := new(MockScorer)
	scorer.On("ScoreRows", mock.Anything, mock.Anything, models.SourceWorker, "job-7").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, apperrors.NewSchemaMismatchError(0, 66, 1, "row 0 has 1 values, expected 66"))

	h := NewHandler(&Config{Timeout: 10 * time.Millisecond, CommandTimeout: time.Second}, scorer, logger.NewTestLogger(t))
	client := &fakeJobClient{gateway: &fakeGateway{}}

	h.Handle(client, createMockJob(7, map[string]interface{}{"data": []interface{}{[]interface{}{1}}}))

	assert.Empty(t, client.gateway.completed)
	assert.Empty(t, client.gateway.failed)
	require.Len(t, client.gateway.thrown, 1)
	assert.Equal(t, "SCHEMA_MISMATCH", client.gateway.thrown[0].ErrorCode)
	assert.Equal(t, []error{nil}, client.gateway.ctxErrs, "throw runs on a live context")
}
