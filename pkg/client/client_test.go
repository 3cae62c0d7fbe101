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

package client

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeSender struct {
	do func(req *http.Request) (*http.Response, error)
}

func (f *fakeSender) Do(req *http.Request) (*http.Response, error) {
	return f.do(req)
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       ioutil.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type fakeConfigMap struct {
	Name            string `json:"name"`
	ResourceVersion string `json:"resourceVersion"`
}

func TestRequestIntoSuccess(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	c := New(&fakeSender{do: func(req *http.Request) (*http.Response, error) {
		if req.Method != "GET" {
			t.Fatalf("method = %s, want GET", req.Method)
		}
		return jsonResponse(200, `{"name":"cm-a","resourceVersion":"10"}`), nil
	}}, base)

	var out fakeConfigMap
	if err := c.RequestInto(context.Background(), Get("/api/v1/namespaces/default/configmaps", "cm-a"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := fakeConfigMap{Name: "cm-a", ResourceVersion: "10"}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestRequestIntoNotFoundClassified(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	c := New(&fakeSender{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(404, `{"kind":"Status","status":"Failure","reason":"NotFound","code":404,"message":"configmaps \"cm-a\" not found"}`), nil
	}}, base)

	err := c.RequestInto(context.Background(), Get("/api/v1/namespaces/default/configmaps", "cm-a"), &fakeConfigMap{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected NotFound classification, got %v", err)
	}
}

func TestRequestIntoUnparsableErrorSynthesized(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	c := New(&fakeSender{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(500, `not json at all`), nil
	}}, base)

	err := c.RequestInto(context.Background(), Get("/api/v1/namespaces/default/configmaps", "cm-a"), &fakeConfigMap{})
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if se.Status.Reason != "Failed to parse error data" {
		t.Fatalf("reason = %q, want %q", se.Status.Reason, "Failed to parse error data")
	}
	if se.Status.Code != 500 {
		t.Fatalf("code = %d, want 500", se.Status.Code)
	}
}

func TestRequestEventsDecodesLines(t *testing.T) {
	base, _ := url.Parse("https://api.example.com")
	payload := `{"type":"ADDED","object":{"name":"cm-a"}}` + "\n" +
		`{"type":"MODIFIED","object":{"name":"cm-a","resourceVersion":"11"}}` + "\n"
	c := New(&fakeSender{do: func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: ioutil.NopCloser(bytes.NewBufferString(payload))}, nil
	}}, base)

	stream, err := c.RequestEvents(context.Background(), Watch("/api/v1/namespaces/default/configmaps", ListOptions{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	ev1, err := stream.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev1.Type != EventAdded {
		t.Fatalf("type = %q, want ADDED", ev1.Type)
	}

	ev2, err := stream.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev2.Type != EventModified {
		t.Fatalf("type = %q, want MODIFIED", ev2.Type)
	}

	if _, err := stream.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestPatchVerbContentType(t *testing.T) {
	v, err := PatchVerb("/api/v1/namespaces/default/pods", "pod-a", Patch{Type: StrategicMergePatch, Data: []byte(`{}`)}, PatchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ContentType != "application/strategic-merge-patch+json" {
		t.Fatalf("content type = %q", v.ContentType)
	}
}

func TestPatchVerbApplyRequiresFieldManager(t *testing.T) {
	_, err := PatchVerb("/api/v1/namespaces/default/pods", "pod-a", Patch{Type: ApplyPatch, Data: []byte(`{}`)}, PatchOptions{})
	if err == nil {
		t.Fatal("expected error when apply patch has no field manager")
	}
}

func TestCreateRejectsUnnamedObject(t *testing.T) {
	_, err := Create("/api/v1/namespaces/default/pods", "", []byte(`{}`), CreateOptions{})
	if err == nil {
		t.Fatal("expected ErrUnnamedObject")
	}
}

func TestListNeverEmitsEmptyQueryKeys(t *testing.T) {
	v := List("/api/v1/namespaces/default/pods", ListOptions{})
	if len(v.Query) != 0 {
		t.Fatalf("expected no query params, got %v", v.Query)
	}
}

func TestWatchBooleanIsLiteralTrue(t *testing.T) {
	v := Watch("/api/v1/namespaces/default/pods", ListOptions{AllowWatchBookmarks: true})
	if got := v.Query.Get("allowWatchBookmarks"); got != "true" {
		t.Fatalf("allowWatchBookmarks = %q, want %q", got, "true")
	}
	if _, ok := v.Query["watch"]; !ok || v.Query.Get("watch") != "1" {
		t.Fatalf("watch=1 missing from query: %v", v.Query)
	}
}
