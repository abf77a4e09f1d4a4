package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
)

// API is the remote collaborator surface the exam taker needs. Tests
// substitute a fake; Client is the production implementation.
type API interface {
	StartAttempt(ctx context.Context, examID uuid.UUID, password string) (*model.StartAttemptResponse, error)
	GetAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error)
	UpsertResponse(ctx context.Context, attemptID, questionID uuid.UUID, option string) (*model.AttemptDetail, error)
	CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error)
}

// APIError is a non-2xx response decoded from the server envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// envelope mirrors the server response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// Client talks to the exam server. Every call carries a bearer credential
// read from the session at call time; a 401 response clears the session
// through the session's once-only unauthorized hook.
type Client struct {
	http    *resty.Client
	session *Session
}

// NewClient creates a Client against baseURL.
func NewClient(baseURL string, session *Session) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		session: session,
	}
}

// Register creates a student account. No credential is attached.
func (c *Client) Register(ctx context.Context, name, regNo, email, password string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name, "reg_no": regNo, "email": email, "password": password}).
		Post("/api/v1/auth/register")
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	_, err = c.decode(resp)
	return err
}

// Login authenticates and installs the returned identity in the session.
func (c *Client) Login(ctx context.Context, regNo, password string) (*Identity, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"reg_no": regNo, "password": password}).
		Post("/api/v1/auth/login")
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	data, err := c.decode(resp)
	if err != nil {
		return nil, err
	}

	var loginResp model.LoginResponse
	if err := json.Unmarshal(data, &loginResp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	identity := Identity{
		Name:  loginResp.User.Name,
		RegNo: loginResp.User.RegNo,
		Role:  string(loginResp.User.Role),
		Token: loginResp.Token,
	}
	c.session.Login(identity)
	return &identity, nil
}

// ListExams fetches the published exams visible to the student.
func (c *Client) ListExams(ctx context.Context) ([]model.Exam, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.session.Identity().Token).
		Get("/api/v1/student/exams")
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	data, err := c.decode(resp)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Exams []model.Exam `json:"exams"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode exams: %w", err)
	}
	return payload.Exams, nil
}

// StartAttempt re-sends the password, starts (or resumes) the attempt and
// stores the returned exam-scoped token in the session.
func (c *Client) StartAttempt(ctx context.Context, examID uuid.UUID, password string) (*model.StartAttemptResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.session.Identity().Token).
		SetBody(map[string]string{"password": password}).
		Post(fmt.Sprintf("/api/v1/student/exams/%s/start", examID))
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}

	data, err := c.decode(resp)
	if err != nil {
		return nil, err
	}

	var started model.StartAttemptResponse
	if err := json.Unmarshal(data, &started); err != nil {
		return nil, fmt.Errorf("decode start response: %w", err)
	}

	c.session.SetExamToken(started.ExamToken)
	return &started, nil
}

// GetAttempt fetches the attempt with its paper and synced responses,
// using the exam-scoped token.
func (c *Client) GetAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.session.Identity().ExamToken).
		Get(fmt.Sprintf("/api/v1/student/attempts/%s", attemptID))
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return c.decodeAttempt(resp)
}

// UpsertResponse saves one answer with replace semantics and returns the
// server's updated view of the attempt.
func (c *Client) UpsertResponse(ctx context.Context, attemptID, questionID uuid.UUID, option string) (*model.AttemptDetail, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.session.Identity().ExamToken).
		SetBody(map[string]string{"selected_option": option}).
		Put(fmt.Sprintf("/api/v1/student/attempts/%s/responses/%s", attemptID, questionID))
	if err != nil {
		return nil, fmt.Errorf("upsert response: %w", err)
	}
	return c.decodeAttempt(resp)
}

// CompleteAttempt finalizes the attempt. After a success the exam-scoped
// token is dropped from the session; later navigation uses the durable one.
func (c *Client) CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.session.Identity().ExamToken).
		Put(fmt.Sprintf("/api/v1/student/attempts/%s/complete", attemptID))
	if err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	detail, err := c.decodeAttempt(resp)
	if err != nil {
		return nil, err
	}
	c.session.ClearExamToken()
	return detail, nil
}

func (c *Client) decodeAttempt(resp *resty.Response) (*model.AttemptDetail, error) {
	data, err := c.decode(resp)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Attempt model.AttemptDetail `json:"attempt"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	return &payload.Attempt, nil
}

// decode unwraps the server envelope. A 401 fires the session's logout
// hook before the error is returned.
func (c *Client) decode(resp *resty.Response) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil && resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Code: "UNKNOWN", Message: resp.Status()}
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			c.session.HandleUnauthorized()
		}
		apiErr := &APIError{Status: resp.StatusCode(), Code: "UNKNOWN", Message: resp.Status()}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}
	return env.Data, nil
}

var _ API = (*Client)(nil)
