/*
Copyright 2019 The MayaData Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package waitfor

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/url"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

type scriptedSender struct {
	t        *testing.T
	requests []func(req *http.Request) (*http.Response, error)
	i        int
}

func (s *scriptedSender) Do(req *http.Request) (*http.Response, error) {
	if s.i >= len(s.requests) {
		s.t.Fatalf("unexpected request #%d: %s %s", s.i, req.Method, req.URL)
	}
	f := s.requests[s.i]
	s.i++
	return f(req)
}

func jsonResp(code int, body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: code,
		Body:       ioutil.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func newObj() interface{} { return &map[string]interface{}{} }

func TestConditionAlreadySatisfiedOnGet(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	sender := &scriptedSender{t: t, requests: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			return jsonResp(200, `{"metadata":{"name":"pod-a","resourceVersion":"1"},"status":{"phase":"Running"}}`)
		},
	}}
	c := kcclient.New(sender, base)

	obj, err := Condition(context.Background(), c, "/api/v1/namespaces/default/pods", "pod-a", newObj, IsPodRunning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, ok := asUnstructured(obj)
	if !ok || u.GetName() != "pod-a" {
		t.Fatalf("unexpected result: %#v", obj)
	}
}

func TestConditionWaitsThroughWatch(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	watchBody := `{"type":"MODIFIED","object":{"metadata":{"name":"pod-a","resourceVersion":"2"},"status":{"phase":"Pending"}}}` + "\n" +
		`{"type":"MODIFIED","object":{"metadata":{"name":"pod-a","resourceVersion":"3"},"status":{"phase":"Running"}}}` + "\n"
	sender := &scriptedSender{t: t, requests: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			return jsonResp(200, `{"metadata":{"name":"pod-a","resourceVersion":"1"},"status":{"phase":"Pending"}}`)
		},
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("resourceVersion") != "1" {
				t.Fatalf("expected watch to resume from rv=1, got %s", req.URL.RawQuery)
			}
			return &http.Response{StatusCode: 200, Body: ioutil.NopCloser(bytes.NewBufferString(watchBody))}, nil
		},
	}}
	c := kcclient.New(sender, base)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	obj, err := Condition(ctx, c, "/api/v1/namespaces/default/pods", "pod-a", newObj, IsPodRunning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := asUnstructured(obj)
	phase, _, _ := unstructured.NestedString(u.Object, "status", "phase")
	if phase != "Running" {
		t.Fatalf("phase = %q, want Running", phase)
	}
}

func TestConditionIsDeletedResolvesOnNotFound(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	sender := &scriptedSender{t: t, requests: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			return jsonResp(404, `{"kind":"Status","status":"Failure","reason":"NotFound","code":404,"message":"pods \"pod-a\" not found"}`)
		},
	}}
	c := kcclient.New(sender, base)

	obj, err := Condition(context.Background(), c, "/api/v1/namespaces/default/pods", "pod-a", newObj, IsDeleted("abc-123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj != nil {
		t.Fatalf("expected nil object for a satisfied delete wait, got %#v", obj)
	}
}

func TestConditionIsDeletedResolvesOnWatchDeleted(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	watchBody := `{"type":"DELETED","object":{"metadata":{"name":"pod-a","uid":"abc-123","resourceVersion":"2"}}}` + "\n"
	sender := &scriptedSender{t: t, requests: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			return jsonResp(200, `{"metadata":{"name":"pod-a","uid":"abc-123","resourceVersion":"1"}}`)
		},
		func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: 200, Body: ioutil.NopCloser(bytes.NewBufferString(watchBody))}, nil
		},
	}}
	c := kcclient.New(sender, base)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	obj, err := Condition(ctx, c, "/api/v1/namespaces/default/pods", "pod-a", newObj, IsDeleted("abc-123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj != nil {
		t.Fatalf("expected nil object once deleted, got %#v", obj)
	}
}

func TestConditionReconnectsOnGone(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	goneStatus := `{"kind":"Status","status":"Failure","reason":"Gone","code":410,"message":"too old resource version"}`
	watchBody := `{"type":"ADDED","object":{"metadata":{"name":"cm-a","resourceVersion":"50"},"established":true}}` + "\n"
	sender := &scriptedSender{t: t, requests: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			return jsonResp(200, `{"metadata":{"name":"cm-a","resourceVersion":"5"}}`)
		},
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("resourceVersion") != "5" {
				t.Fatalf("expected first watch attempt at rv=5, got %s", req.URL.RawQuery)
			}
			return jsonResp(410, goneStatus)
		},
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("resourceVersion") != "" {
				t.Fatalf("expected reconnect with empty resourceVersion after Gone, got %s", req.URL.RawQuery)
			}
			return &http.Response{StatusCode: 200, Body: ioutil.NopCloser(bytes.NewBufferString(watchBody))}, nil
		},
	}}
	c := kcclient.New(sender, base)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	always := func(obj interface{}, present bool) bool { return present }
	_, err := Condition(ctx, c, "/apis/example.com/v1/widgets", "cm-a", newObj, always)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCRDEstablishedChecksConditionTrue(t *testing.T) {
	u := &unstructured.Unstructured{Object: map[string]interface{}{
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "NamesAccepted", "status": "True"},
				map[string]interface{}{"type": "Established", "status": "True"},
			},
		},
	}}
	if !IsCRDEstablished(u, true) {
		t.Fatal("expected Established/True condition to satisfy the predicate")
	}
	if IsCRDEstablished(nil, false) {
		t.Fatal("absent object must never satisfy IsCRDEstablished")
	}
}
