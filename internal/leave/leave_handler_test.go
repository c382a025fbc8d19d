package leave_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go-hris-leave/internal/leave"
	leaveerrors "go-hris-leave/internal/leave/errors"
	leavebalanceerrors "go-hris-leave/internal/leavebalance/errors"
	"go-hris-leave/internal/middleware"
	"go-hris-leave/internal/shared/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type apiError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	err := json.Unmarshal(body, &env)
	assert.NoError(t, err)
	return env
}

type fakeLeaveService struct {
	createFn     func(ctx context.Context, companyID, actorID string, req leave.CreateLeaveRequest) (leave.LeaveResponse, error)
	getAllFn     func(ctx context.Context, companyID string, filter leave.ListFilter) ([]leave.LeaveResponse, error)
	getByIDFn    func(ctx context.Context, companyID, id string) (leave.LeaveResponse, error)
	approveFn    func(ctx context.Context, companyID, actorID, id string) (leave.LeaveResponse, error)
	rejectFn     func(ctx context.Context, companyID, actorID, id, reason string) (leave.LeaveResponse, error)
	cancelFn     func(ctx context.Context, companyID, actorID, id string) (leave.LeaveResponse, error)
	transitionFn func(ctx context.Context, companyID, actorID, id string, req leave.TransitionRequest) (leave.LeaveResponse, error)
	deleteFn     func(ctx context.Context, companyID, actorID, id string) error
}

func (f *fakeLeaveService) Create(ctx context.Context, companyID, actorID string, req leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
	return f.createFn(ctx, companyID, actorID, req)
}
func (f *fakeLeaveService) GetAll(ctx context.Context, companyID string, filter leave.ListFilter) ([]leave.LeaveResponse, error) {
	return f.getAllFn(ctx, companyID, filter)
}
func (f *fakeLeaveService) GetByID(ctx context.Context, companyID, id string) (leave.LeaveResponse, error) {
	return f.getByIDFn(ctx, companyID, id)
}
func (f *fakeLeaveService) Approve(ctx context.Context, companyID, actorID, id string) (leave.LeaveResponse, error) {
	return f.approveFn(ctx, companyID, actorID, id)
}
func (f *fakeLeaveService) Reject(ctx context.Context, companyID, actorID, id, reason string) (leave.LeaveResponse, error) {
	return f.rejectFn(ctx, companyID, actorID, id, reason)
}
func (f *fakeLeaveService) Cancel(ctx context.Context, companyID, actorID, id string) (leave.LeaveResponse, error) {
	return f.cancelFn(ctx, companyID, actorID, id)
}
func (f *fakeLeaveService) Transition(ctx context.Context, companyID, actorID, id string, req leave.TransitionRequest) (leave.LeaveResponse, error) {
	return f.transitionFn(ctx, companyID, actorID, id, req)
}
func (f *fakeLeaveService) Delete(ctx context.Context, companyID, actorID, id string) error {
	return f.deleteFn(ctx, companyID, actorID, id)
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	apperror.Init()
	os.Exit(m.Run())
}

func newContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body != "" {
		c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	return c, w
}

func TestLeaveHandler_Create(t *testing.T) {
	companyID := uuid.New().String()
	actorID := uuid.New().String()
	employeeID := uuid.New().String()
	body := `{"employee_id":"` + employeeID + `","leave_type":"ANNUAL","start_date":"2026-03-10","end_date":"2026-03-11","reason":"Family matters"}`

	t.Run("success uses user_id_validated fallback", func(t *testing.T) {
		svc := &fakeLeaveService{
			createFn: func(_ context.Context, cid, aid string, req leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, companyID, cid)
				assert.Equal(t, actorID, aid)
				assert.Equal(t, employeeID, req.EmployeeID)
				return leave.LeaveResponse{
					ID:         uuid.New().String(),
					CompanyID:  cid,
					EmployeeID: req.EmployeeID,
					LeaveType:  req.LeaveType,
					StartDate:  req.StartDate,
					EndDate:    req.EndDate,
					TotalDays:  2,
					Status:     leave.StatusPending,
				}, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves", body)
		c.Set("company_id", companyID)
		c.Set("user_id_validated", actorID)

		h.Create(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, 2, got.TotalDays)
		assert.Equal(t, leave.StatusPending, got.Status)
	})

	t.Run("unknown leave type fails binding", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		c, w := newContext(http.MethodPost, "/leaves", strings.Replace(body, "ANNUAL", "UNPAID", 1))
		c.Set("company_id", companyID)

		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("malformed date fails binding", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		c, w := newContext(http.MethodPost, "/leaves", strings.Replace(body, "2026-03-11", "11/03/2026", 1))
		c.Set("company_id", companyID)

		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, string(env.Error.Details), "End Date is invalid")
	})

	t.Run("insufficient balance is 422 with details", func(t *testing.T) {
		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leavebalanceerrors.InsufficientBalance("ANNUAL", 1, 2)
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves", body)
		c.Set("company_id", companyID)
		c.Set("employee_id", actorID)

		h.Create(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "INSUFFICIENT_BALANCE", env.Error.Code)
		var details leavebalanceerrors.InsufficientDetails
		assert.NoError(t, json.Unmarshal(env.Error.Details, &details))
		assert.Equal(t, 1, details.Available)
	})

	t.Run("overlap is conflict", func(t *testing.T) {
		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrLeaveOverlap
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves", body)
		c.Set("company_id", companyID)

		h.Create(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("stores result and releases idempotency lock", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cacheKey := "idemp:/leaves:" + actorID + ":abc"
		lockKey := cacheKey + ":lock"
		mock.Regexp().ExpectSet(cacheKey, ".*", 24*time.Hour).SetVal("OK")
		mock.ExpectDel(lockKey).SetVal(1)

		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{ID: "leave-1", Status: leave.StatusPending}, nil
			},
		}
		h := leave.NewHandlerWithRedis(svc, rdb)
		c, w := newContext(http.MethodPost, "/leaves", body)
		c.Set("company_id", companyID)
		c.Set("employee_id", actorID)
		c.Set(middleware.IdempotencyCacheKey, cacheKey)
		c.Set(middleware.IdempotencyLockKey, lockKey)

		h.Create(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure releases lock without caching", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		lockKey := "idemp:/leaves:" + actorID + ":abc:lock"
		mock.ExpectDel(lockKey).SetVal(1)

		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrEmployeeNotFound
			},
		}
		h := leave.NewHandlerWithRedis(svc, rdb)
		c, w := newContext(http.MethodPost, "/leaves", body)
		c.Set("company_id", companyID)
		c.Set(middleware.IdempotencyCacheKey, "idemp:/leaves:"+actorID+":abc")
		c.Set(middleware.IdempotencyLockKey, lockKey)

		h.Create(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLeaveHandler_GetAll(t *testing.T) {
	companyID := uuid.New().String()
	employeeID := uuid.New().String()

	t.Run("passes filters and paginates", func(t *testing.T) {
		svc := &fakeLeaveService{
			getAllFn: func(_ context.Context, cid string, filter leave.ListFilter) ([]leave.LeaveResponse, error) {
				assert.Equal(t, companyID, cid)
				assert.Equal(t, leave.ListFilter{EmployeeID: employeeID, Status: "PENDING"}, filter)
				return []leave.LeaveResponse{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodGet, "/leaves?employee_id="+employeeID+"&status=PENDING&page=1&page_size=2", "")
		c.Set("company_id", companyID)

		h.GetAll(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		var got []leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Len(t, got, 2)
	})

	t.Run("invalid status", func(t *testing.T) {
		svc := &fakeLeaveService{
			getAllFn: func(context.Context, string, leave.ListFilter) ([]leave.LeaveResponse, error) {
				return nil, leaveerrors.ErrInvalidStatus
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodGet, "/leaves?status=ARCHIVED", "")
		c.Set("company_id", companyID)

		h.GetAll(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLeaveHandler_GetByID(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "not found", err: leaveerrors.ErrLeaveNotFound, wantStatus: http.StatusNotFound},
		{name: "storage failure", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeLeaveService{
				getByIDFn: func(_ context.Context, _, id string) (leave.LeaveResponse, error) {
					assert.Equal(t, "leave-1", id)
					return leave.LeaveResponse{ID: id}, tt.err
				},
			}
			h := leave.NewHandler(svc)
			c, w := newContext(http.MethodGet, "/leaves/leave-1", "")
			c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

			h.GetById(c)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestLeaveHandler_Decisions(t *testing.T) {
	actorID := uuid.New().String()
	ok := func(status string) leave.LeaveResponse { return leave.LeaveResponse{ID: "leave-1", Status: status} }

	t.Run("approve", func(t *testing.T) {
		svc := &fakeLeaveService{
			approveFn: func(_ context.Context, _, aid, id string) (leave.LeaveResponse, error) {
				assert.Equal(t, actorID, aid)
				return ok(leave.StatusApproved), nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves/leave-1/approve", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}
		c.Set("employee_id", actorID)

		h.Approve(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("approve twice is conflict", func(t *testing.T) {
		svc := &fakeLeaveService{
			approveFn: func(context.Context, string, string, string) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrAlreadyProcessed
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves/leave-1/approve", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Approve(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "ALREADY_PROCESSED", env.Error.Code)
	})

	t.Run("reject without body", func(t *testing.T) {
		svc := &fakeLeaveService{
			rejectFn: func(_ context.Context, _, _, _, reason string) (leave.LeaveResponse, error) {
				assert.Empty(t, reason)
				return ok(leave.StatusRejected), nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves/leave-1/reject", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Reject(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("reject with reason", func(t *testing.T) {
		svc := &fakeLeaveService{
			rejectFn: func(_ context.Context, _, _, _, reason string) (leave.LeaveResponse, error) {
				assert.Equal(t, "coverage", reason)
				return ok(leave.StatusRejected), nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves/leave-1/reject", `{"reason":"coverage"}`)
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Reject(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cancel forbidden", func(t *testing.T) {
		svc := &fakeLeaveService{
			cancelFn: func(context.Context, string, string, string) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrNotAllowed
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves/leave-1/cancel", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Cancel(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("transition requires action", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		c, w := newContext(http.MethodPost, "/leaves/leave-1/transition", `{}`)
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Transition(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("transition", func(t *testing.T) {
		svc := &fakeLeaveService{
			transitionFn: func(_ context.Context, _, _, _ string, req leave.TransitionRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, "cancel", req.Action)
				return ok(leave.StatusCancelled), nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodPost, "/leaves/leave-1/transition", `{"action":"cancel"}`)
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Transition(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		var got leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, leave.StatusCancelled, got.Status)
	})
}

func TestLeaveHandler_Delete(t *testing.T) {
	actorID := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		svc := &fakeLeaveService{
			deleteFn: func(_ context.Context, _, aid, id string) error {
				assert.Equal(t, actorID, aid)
				assert.Equal(t, "leave-1", id)
				return nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodDelete, "/leaves/leave-1", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}
		c.Set("employee_id", actorID)

		h.Delete(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.JSONEq(t, `{"deleted":true}`, string(env.Data))
	})

	t.Run("not found", func(t *testing.T) {
		svc := &fakeLeaveService{
			deleteFn: func(context.Context, string, string, string) error {
				return leaveerrors.ErrLeaveNotFound
			},
		}
		h := leave.NewHandler(svc)
		c, w := newContext(http.MethodDelete, "/leaves/leave-1", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}

		h.Delete(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
