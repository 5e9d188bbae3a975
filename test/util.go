// Copyright 2020, Square, Inc.

// Package test provides helper functions for tests.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/square/jobctl/proto"
)

// MakeHTTPRequest is a helper function for making an http request. The response
// body of the http request is unmarshalled into the struct pointed to by the
// respStruct argument (if it's not nil). The status code of the response and
// the response headers are returned.
func MakeHTTPRequest(httpVerb, url string, payload []byte, respStruct interface{}) (int, http.Header, error) {
	var statusCode int
	// Make the http request.
	req, err := http.NewRequest(httpVerb, url, bytes.NewReader(payload))
	if err != nil {
		return statusCode, http.Header{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := (http.DefaultClient).Do(req)
	if err != nil {
		return statusCode, http.Header{}, err
	}
	defer res.Body.Close()

	if respStruct != nil {
		decoder := json.NewDecoder(res.Body)
		err = decoder.Decode(respStruct)
		if err != nil {
			return res.StatusCode, res.Header, fmt.Errorf("error decoding response body: %s", err)
		}
	}

	return res.StatusCode, res.Header, nil
}

// InitJobs returns count running backup jobs owned by client, with ids
// prefix1..prefixN.
func InitJobs(count int, prefix, client string) []proto.Job {
	now := time.Now().UTC().Truncate(time.Second)
	jobs := make([]proto.Job, count)
	for i := range jobs {
		jobs[i] = proto.Job{
			Id:              fmt.Sprintf("%s%d", prefix, i+1),
			Kind:            "backup",
			Client:          client,
			Status:          proto.STATUS_RUNNING,
			Phase:           "Scan",
			PercentComplete: 10,
			SubmittedAt:     now,
			UpdatedAt:       now,
		}
	}
	return jobs
}
