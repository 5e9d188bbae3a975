// Copyright 2020, Square, Inc.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
)

const API_ROOT = "/api/v1/"

type httpClient struct {
	*http.Client
	baseUrl string
}

var (
	_ Client          = &httpClient{}
	_ BatchController = &httpClient{}
)

// NewClient takes an http.Client and base API URL (ex: http://127.0.0.1:32310)
// and creates a client for the job manager API. The returned client also
// implements BatchController.
func NewClient(c *http.Client, baseUrl string) *httpClient {
	return &httpClient{
		Client:  c,
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
	}
}

func (c *httpClient) Submit(ctx context.Context, sr proto.SubmitRequest) (proto.Job, error) {
	// POST /api/v1/jobs
	var job proto.Job
	err := c.makeRequest(ctx, "POST", c.baseUrl+API_ROOT+"jobs", sr, http.StatusCreated, &job, "", "submit")
	return job, err
}

func (c *httpClient) Status(ctx context.Context, jobId string) (proto.JobStatus, error) {
	// GET /api/v1/jobs/${jobId}/status
	u := c.baseUrl + API_ROOT + "jobs/" + url.PathEscape(jobId) + "/status"
	var status proto.JobStatus
	err := c.makeRequest(ctx, "GET", u, nil, http.StatusOK, &status, jobId, "status")
	if err == nil {
		status.Status = proto.ParseStatus(string(status.Status))
	}
	return status, err
}

func (c *httpClient) Control(ctx context.Context, jobId, action string) error {
	if !proto.ValidAction(action) {
		return fmt.Errorf("invalid action: %s", action)
	}
	// PUT /api/v1/jobs/${jobId}/${action}
	u := c.baseUrl + API_ROOT + "jobs/" + url.PathEscape(jobId) + "/" + action
	return c.makeRequest(ctx, "PUT", u, nil, http.StatusOK, nil, jobId, action)
}

func (c *httpClient) List(ctx context.Context, f proto.ListFilter) ([]proto.Job, error) {
	// GET /api/v1/jobs?client=...
	var jobs []proto.Job
	if err := c.makeRequest(ctx, "GET", c.baseUrl+API_ROOT+"jobs"+f.String(), nil, http.StatusOK, &jobs, "", "list"); err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].Status = proto.ParseStatus(string(jobs[i].Status))
	}
	return jobs, nil
}

func (c *httpClient) ControlJobs(ctx context.Context, action string, jobIds []string) (map[string]error, error) {
	if !proto.ValidAction(action) {
		return nil, fmt.Errorf("invalid action: %s", action)
	}
	// PUT /api/v1/control/${action}
	u := c.baseUrl + API_ROOT + "control/" + action
	var results []proto.ControlResult
	if err := c.makeRequest(ctx, "PUT", u, proto.ControlRequest{JobIds: jobIds}, http.StatusOK, &results, "", action); err != nil {
		return nil, err
	}

	errs := make(map[string]error, len(jobIds))
	for _, id := range jobIds {
		errs[id] = fmt.Errorf("no result for job %s", id)
	}
	for _, r := range results {
		if r.Error == "" {
			errs[r.JobId] = nil
			continue
		}
		errs[r.JobId] = statusError(r.HTTPStatus, r.Error, r.JobId, action)
	}
	return errs, nil
}

// ------------------------------------------------------------------------- //

// makeRequest is a helper function for making HTTP requests. The httpVerb, url,
// and expectedStatusCode arguments are self explanatory. If the payloadStruct
// argument is provided (if it's not nil), the struct will be marshalled into
// JSON and sent as the payload of the request. If the respStruct argument is
// provided (if it's not nil), the response body of the request will be
// unmarshalled into the struct pointed to by it. jobId and op are used only to
// build typed errors.
func (c *httpClient) makeRequest(ctx context.Context, httpVerb, url string, payloadStruct interface{}, expectedStatusCode int, respStruct interface{}, jobId, op string) error {
	// Marshal payload.
	var payload []byte
	var err error
	if payloadStruct != nil {
		payload, err = json.Marshal(payloadStruct)
		if err != nil {
			return err
		}
	}

	// Create the request.
	req, err := http.NewRequestWithContext(ctx, httpVerb, url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}

	// Send the request. A cancelled or expired ctx is the caller's doing, not
	// a problem with the remote system.
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return serr.NewTransient(err)
	}
	defer resp.Body.Close()

	// Read the response body.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return serr.NewTransient(err)
	}

	// Check the status code.
	if resp.StatusCode != expectedStatusCode {
		var apiErr proto.Error
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return statusError(resp.StatusCode, msg, jobId, op)
	}

	// Unmarshal the body into the struct pointed to by the respStruct argument.
	if respStruct != nil {
		if err = json.Unmarshal(body, respStruct); err != nil {
			return err
		}
	}

	return nil
}

// statusError maps an unexpected HTTP status code to a typed error.
func statusError(code int, msg, jobId, op string) error {
	switch {
	case code == http.StatusNotFound && jobId != "":
		return serr.JobNotFound{JobId: jobId}
	case code == http.StatusConflict || code == http.StatusForbidden:
		return serr.NewRejected(jobId, op, msg)
	case code == http.StatusTooManyRequests || code >= 500:
		return serr.NewTransient(fmt.Errorf("unsuccessful status code: %d (response body: %s)", code, msg))
	}
	return fmt.Errorf("unsuccessful status code: %d (response body: %s)", code, msg)
}
