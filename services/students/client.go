package students

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sahilchouksey/course-enrollment/model"
)

// ErrDecode marks a response body that could not be decoded
var ErrDecode = errors.New("decode response")

// Client is the student directory API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new directory client. Every request is bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetStudentByID fetches a single student.
func (c *Client) GetStudentByID(ctx context.Context, id int64) (*model.Student, error) {
	var student model.Student
	if err := c.doRequest(ctx, http.MethodGet, "/students/"+strconv.FormatInt(id, 10), nil, &student); err != nil {
		return nil, fmt.Errorf("students.GetStudentByID: %w", err)
	}
	return &student, nil
}

// GetStudentsByEmails resolves a list of emails in one call.
func (c *Client) GetStudentsByEmails(ctx context.Context, emails []string) ([]model.Student, error) {
	if len(emails) == 0 {
		return []model.Student{}, nil
	}
	var list []model.Student
	if err := c.doRequest(ctx, http.MethodPost, "/students/emails", emails, &list); err != nil {
		return nil, fmt.Errorf("students.GetStudentsByEmails: %w", err)
	}
	if list == nil {
		list = []model.Student{}
	}
	return list, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			if apiErr.Message != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Message}
			}
			if apiErr.Error != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
			}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return nil
}
