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

package conversion

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	kjson "k8s.io/apimachinery/pkg/util/json"
)

// rawObjFromYAML loads a request fixture written as YAML, the way
// hooks/webhook.go's tests read hook payloads, and converts it to the
// RawExtension JSON form ConversionRequest.Objects carries on the wire.
func rawObjFromYAML(t *testing.T, doc string) runtime.RawExtension {
	t.Helper()
	jsonBytes, err := yaml.YAMLToJSON([]byte(doc))
	if err != nil {
		t.Fatalf("convert fixture YAML to JSON: %v", err)
	}
	return runtime.RawExtension{Raw: jsonBytes}
}

func rawObj(s string) runtime.RawExtension {
	return runtime.RawExtension{Raw: []byte(s)}
}

func reverseConvert(objects []runtime.RawExtension, desired string) ([]runtime.RawExtension, error) {
	out := make([]runtime.RawExtension, len(objects))
	for i, o := range objects {
		out[len(objects)-1-i] = o
	}
	return out, nil
}

func failingConvert(objects []runtime.RawExtension, desired string) ([]runtime.RawExtension, error) {
	return nil, errors.New("unsupported apiVersion")
}

func TestBuildResponsePreservesOrder(t *testing.T) {
	req := &apiextensionsv1.ConversionRequest{
		UID:               "abc-123",
		DesiredAPIVersion: "example.com/v2",
		Objects:           []runtime.RawExtension{rawObj(`{"a":1}`), rawObj(`{"a":2}`), rawObj(`{"a":3}`)},
	}
	// identity convert: order must be unchanged
	resp := BuildResponse(req, func(objects []runtime.RawExtension, desired string) ([]runtime.RawExtension, error) {
		return objects, nil
	})
	if resp.UID != "abc-123" {
		t.Fatalf("uid = %q, want abc-123", resp.UID)
	}
	if resp.Result.Status != metav1.StatusSuccess {
		t.Fatalf("result = %+v, want Success", resp.Result)
	}
	if len(resp.ConvertedObjects) != 3 {
		t.Fatalf("got %d converted objects, want 3", len(resp.ConvertedObjects))
	}
	for i, want := range []string{`{"a":1}`, `{"a":2}`, `{"a":3}`} {
		if string(resp.ConvertedObjects[i].Raw) != want {
			t.Fatalf("object %d = %s, want %s", i, resp.ConvertedObjects[i].Raw, want)
		}
	}
}

func TestBuildResponseEmptyOnFailure(t *testing.T) {
	req := &apiextensionsv1.ConversionRequest{
		UID:     "abc-123",
		Objects: []runtime.RawExtension{rawObj(`{"a":1}`)},
	}
	resp := BuildResponse(req, failingConvert)
	if resp.Result.Status != metav1.StatusFailure {
		t.Fatalf("result = %+v, want Failure", resp.Result)
	}
	if len(resp.ConvertedObjects) != 0 {
		t.Fatalf("expected zero converted objects on failure, got %d", len(resp.ConvertedObjects))
	}
	if resp.UID != "abc-123" {
		t.Fatalf("uid must still be carried through on failure, got %q", resp.UID)
	}
}

func TestBuildResponseNilRequestEmitsEmptyUID(t *testing.T) {
	resp := BuildResponse(nil, func(objects []runtime.RawExtension, desired string) ([]runtime.RawExtension, error) {
		t.Fatal("Convert must not be called without a request")
		return nil, nil
	})
	if resp.UID != "" {
		t.Fatalf("uid = %q, want empty", resp.UID)
	}
	if len(resp.ConvertedObjects) != 0 {
		t.Fatalf("expected zero converted objects, got %d", len(resp.ConvertedObjects))
	}
}

func TestHandlerRoundTrip(t *testing.T) {
	h := &Handler{Convert: reverseConvert}
	reviewIn := apiextensionsv1.ConversionReview{
		TypeMeta: metav1.TypeMeta{APIVersion: "apiextensions.k8s.io/v1", Kind: "ConversionReview"},
		Request: &apiextensionsv1.ConversionRequest{
			UID:     "req-1",
			Objects: []runtime.RawExtension{rawObj(`{"a":1}`), rawObj(`{"a":2}`)},
		},
	}
	body, err := kjson.Marshal(reviewIn)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out apiextensionsv1.ConversionReview
	if err := kjson.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if out.Response == nil {
		t.Fatal("response field missing")
	}
	if out.Response.UID != "req-1" {
		t.Fatalf("uid = %q, want req-1", out.Response.UID)
	}
	if len(out.Response.ConvertedObjects) != 2 {
		t.Fatalf("got %d converted objects, want 2", len(out.Response.ConvertedObjects))
	}
	if string(out.Response.ConvertedObjects[0].Raw) != `{"a":2}` {
		t.Fatalf("reversal not applied: %s", out.Response.ConvertedObjects[0].Raw)
	}
}

func TestBuildResponseFromYAMLFixture(t *testing.T) {
	req := &apiextensionsv1.ConversionRequest{
		UID:               "yaml-fixture",
		DesiredAPIVersion: "widgets.example.com/v2",
		Objects: []runtime.RawExtension{rawObjFromYAML(t, `
apiVersion: widgets.example.com/v1
kind: Widget
metadata:
  name: w1
  namespace: default
spec:
  size: large
`)},
	}
	resp := BuildResponse(req, func(objects []runtime.RawExtension, desired string) ([]runtime.RawExtension, error) {
		return objects, nil
	})
	if len(resp.ConvertedObjects) != 1 {
		t.Fatalf("got %d converted objects, want 1", len(resp.ConvertedObjects))
	}
	var decoded map[string]interface{}
	if err := kjson.Unmarshal(resp.ConvertedObjects[0].Raw, &decoded); err != nil {
		t.Fatalf("unmarshal converted object: %v", err)
	}
	if decoded["kind"] != "Widget" {
		t.Fatalf("kind = %v, want Widget", decoded["kind"])
	}
}

func TestHandlerMalformedBodyStillRespondsWithEnvelope(t *testing.T) {
	h := &Handler{Convert: reverseConvert}
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (malformed input still gets a structured Status)", rec.Code)
	}
	var out apiextensionsv1.ConversionReview
	if err := kjson.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if out.Response.UID != "" {
		t.Fatalf("uid = %q, want empty for a request that never parsed", out.Response.UID)
	}
	if out.Response.Result.Status != metav1.StatusFailure {
		t.Fatalf("result = %+v, want Failure", out.Response.Result)
	}
}
