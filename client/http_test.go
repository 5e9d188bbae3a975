// Copyright 2020, Square, Inc.

package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/jobctl/client"
	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
)

func TestSubmit(t *testing.T) {
	var path, method string
	var payload proto.SubmitRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		method = r.Method
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(proto.Job{Id: "j1", Kind: "backup", Client: "clientA", Status: proto.STATUS_RUNNING})
	}))
	defer ts.Close()

	c := client.NewClient(&http.Client{}, ts.URL)
	sr := proto.SubmitRequest{Kind: "backup", Client: "clientA", Args: map[string]interface{}{"level": "full"}}
	job, err := c.Submit(context.Background(), sr)
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}

	if path != "/api/v1/jobs" {
		t.Errorf("url path = %s, expected /api/v1/jobs", path)
	}
	if method != "POST" {
		t.Errorf("request method = %s, expected POST", method)
	}
	if diff := deep.Equal(payload, sr); diff != nil {
		t.Error(diff)
	}
	expect := proto.Job{Id: "j1", Kind: "backup", Client: "clientA", Status: proto.STATUS_RUNNING}
	if diff := deep.Equal(job, expect); diff != nil {
		t.Error(diff)
	}
}

func TestStatus(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"jobId":"j1","status":"running","phase":"Scan","percentComplete":12}`))
	}))
	defer ts.Close()

	c := client.NewClient(&http.Client{}, ts.URL+"/")
	status, err := c.Status(context.Background(), "j1")
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if path != "/api/v1/jobs/j1/status" {
		t.Errorf("url path = %s, expected /api/v1/jobs/j1/status", path)
	}
	expect := proto.JobStatus{JobId: "j1", Status: proto.STATUS_RUNNING, Phase: "Scan", PercentComplete: 12}
	if diff := deep.Equal(status, expect); diff != nil {
		t.Error(diff)
	}
}

func TestErrorMapping(t *testing.T) {
	code := http.StatusNotFound
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(proto.Error{Message: "nope", HTTPStatus: code})
	}))
	defer ts.Close()
	c := client.NewClient(&http.Client{}, ts.URL)

	_, err := c.Status(context.Background(), "id999")
	if diff := deep.Equal(err, serr.JobNotFound{JobId: "id999"}); diff != nil {
		t.Error(diff)
	}

	code = http.StatusConflict
	err = c.Control(context.Background(), "j1", proto.ACTION_RESUME)
	if diff := deep.Equal(err, serr.NewRejected("j1", "resume", "nope")); diff != nil {
		t.Error(diff)
	}

	code = http.StatusForbidden
	err = c.Control(context.Background(), "j1", proto.ACTION_KILL)
	if !serr.IsRejected(err) {
		t.Errorf("err = %v, expected Rejected", err)
	}

	code = http.StatusServiceUnavailable
	_, err = c.List(context.Background(), proto.ListFilter{})
	if !serr.IsTransient(err) {
		t.Errorf("err = %v, expected Transient", err)
	}

	code = http.StatusBadRequest
	err = c.Control(context.Background(), "j1", proto.ACTION_KILL)
	if err == nil || serr.IsTransient(err) || serr.IsRejected(err) {
		t.Errorf("err = %v, expected plain error", err)
	}
}

func TestConnectionErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close() // nothing listening now

	c := client.NewClient(&http.Client{}, url)
	_, err := c.Status(context.Background(), "j1")
	if !serr.IsTransient(err) {
		t.Errorf("err = %v, expected Transient", err)
	}
}

func TestCancelledContextIsNotTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c := client.NewClient(&http.Client{}, ts.URL)
	_, err := c.Status(ctx, "j1")
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, expected context.DeadlineExceeded", err)
	}
}

func TestList(t *testing.T) {
	var rawQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`[{"id":"j1","kind":"backup","client":"clientA","status":"SUSPENDED"}]`))
	}))
	defer ts.Close()

	c := client.NewClient(&http.Client{}, ts.URL)
	jobs, err := c.List(context.Background(), proto.ListFilter{Client: "clientA"})
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if rawQuery != "client=clientA" {
		t.Errorf("query = %s, expected client=clientA", rawQuery)
	}
	expect := []proto.Job{{Id: "j1", Kind: "backup", Client: "clientA", Status: proto.STATUS_SUSPENDED}}
	if diff := deep.Equal(jobs, expect); diff != nil {
		t.Error(diff)
	}
}

func TestControlJobs(t *testing.T) {
	var path string
	var payload proto.ControlRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode([]proto.ControlResult{
			{JobId: "j1", HTTPStatus: http.StatusOK},
			{JobId: "j2", Error: "job is Killed", HTTPStatus: http.StatusConflict},
		})
	}))
	defer ts.Close()

	c := client.NewClient(&http.Client{}, ts.URL)
	errs, err := c.ControlJobs(context.Background(), proto.ACTION_SUSPEND, []string{"j1", "j2", "j3"})
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if path != "/api/v1/control/suspend" {
		t.Errorf("url path = %s, expected /api/v1/control/suspend", path)
	}
	if diff := deep.Equal(payload.JobIds, []string{"j1", "j2", "j3"}); diff != nil {
		t.Error(diff)
	}
	if errs["j1"] != nil {
		t.Errorf("j1 err = %s, expected nil", errs["j1"])
	}
	if diff := deep.Equal(errs["j2"], serr.NewRejected("j2", "suspend", "job is Killed")); diff != nil {
		t.Error(diff)
	}
	if errs["j3"] == nil {
		t.Error("j3 err = nil, expected missing result error")
	}
}
