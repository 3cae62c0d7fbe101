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
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/json"
)

// StatusError wraps a Kubernetes Status object returned by the API
// server for any response in [400, 600). It is the concrete error
// type returned from every Client method on failure.
type StatusError struct {
	Status metav1.Status
}

func (e *StatusError) Error() string {
	if e.Status.Message != "" {
		return e.Status.Message
	}
	return fmt.Sprintf("apiserver error: code=%d reason=%s", e.Status.Code, e.Status.Reason)
}

// Reason returns the structured reason, e.g. metav1.StatusReasonNotFound.
func (e *StatusError) Reason() metav1.StatusReason {
	return e.Status.Reason
}

// Code returns the HTTP status code the server reported.
func (e *StatusError) Code() int32 {
	return e.Status.Code
}

// IsNotFound reports whether err is a 404/NotFound StatusError.
func IsNotFound(err error) bool {
	return hasReason(err, metav1.StatusReasonNotFound)
}

// IsConflict reports whether err is a 409/Conflict StatusError.
func IsConflict(err error) bool {
	return hasReason(err, metav1.StatusReasonConflict)
}

// IsAlreadyExists reports whether err is a 409/AlreadyExists StatusError.
func IsAlreadyExists(err error) bool {
	return hasReason(err, metav1.StatusReasonAlreadyExists)
}

// IsGone reports whether err is a 410/Gone StatusError — the signal a
// Watcher uses to trigger a full relist (spec.md §4.5, §7).
func IsGone(err error) bool {
	se, ok := err.(*StatusError)
	if !ok {
		return false
	}
	return se.Status.Code == 410 || se.Status.Reason == metav1.StatusReasonExpired || se.Status.Reason == metav1.StatusReasonGone
}

// IsUnauthorized reports whether err is a 401 StatusError.
func IsUnauthorized(err error) bool {
	return hasReason(err, metav1.StatusReasonUnauthorized)
}

// IsForbidden reports whether err is a 403 StatusError.
func IsForbidden(err error) bool {
	return hasReason(err, metav1.StatusReasonForbidden)
}

// IsTimeout reports whether err is a request-timeout StatusError.
func IsTimeout(err error) bool {
	return hasReason(err, metav1.StatusReasonTimeout)
}

func hasReason(err error, reason metav1.StatusReason) bool {
	se, ok := err.(*StatusError)
	if !ok {
		return false
	}
	return se.Status.Reason == reason
}

// parseStatus classifies an error HTTP response body. If the body
// decodes as a Status object it is returned as-is; otherwise a
// synthetic Status is constructed, per spec.md §4.3.
func parseStatus(code int, body []byte) *StatusError {
	var st metav1.Status
	if err := json.Unmarshal(body, &st); err == nil && looksLikeStatus(st) {
		if st.Code == 0 {
			st.Code = int32(code)
		}
		return &StatusError{Status: st}
	}
	return &StatusError{Status: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    int32(code),
		Message: string(body),
		Reason:  "Failed to parse error data",
	}}
}

// looksLikeStatus guards against JSON that happens to unmarshal into a
// zero-value Status (e.g. "{}" or an unrelated object) being mistaken
// for a real structured error.
func looksLikeStatus(st metav1.Status) bool {
	return st.Kind == "Status" || st.Status != "" || st.Reason != "" || st.Message != ""
}
