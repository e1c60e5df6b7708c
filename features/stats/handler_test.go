package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"postpilot/apps/backend/features/job"
)

type MockJobCounter struct{ mock.Mock }

func (m *MockJobCounter) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[job.Status]int), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockJobCounter)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(j *MockJobCounter) {
				j.On("CountByStatus", mock.Anything).Return(map[job.Status]int{
					job.StatusPending:   4,
					job.StatusRunning:   1,
					job.StatusCompleted: 20,
					job.StatusFailed:    2,
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantError:  false,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 4, data["pending"])
				assert.EqualValues(t, 1, data["running"])
				assert.EqualValues(t, 20, data["completed"])
				assert.EqualValues(t, 2, data["failed"])
			},
		},
		{
			name: "Empty Queue",
			setupMocks: func(j *MockJobCounter) {
				j.On("CountByStatus", mock.Anything).Return(map[job.Status]int{}, nil)
			},
			wantStatus: http.StatusOK,
			wantError:  false,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 0, data["pending"])
				assert.EqualValues(t, 0, data["failed"])
			},
		},
		{
			name: "Counter Error",
			setupMocks: func(j *MockJobCounter) {
				j.On("CountByStatus", mock.Anything).Return(nil, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := new(MockJobCounter)
			tt.setupMocks(counter)

			h := NewHandler(counter)

			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()

			h.GetStats(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			if tt.wantError {
				assert.Contains(t, body, "error")
			} else if tt.checkBody != nil {
				tt.checkBody(t, body)
			}

			counter.AssertExpectations(t)
		})
	}
}
