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

// Package conversion implements the CustomResourceDefinition
// conversion webhook envelope from spec.md §4.9: decode one
// ConversionReview, hand its objects to a ConvertFunc in order,
// and wrap the result back into a ConversionReview response. It
// reuses apiextensions-apiserver's own wire types rather than
// re-declaring the envelope, the same way callWebhook in
// hooks/webhook.go builds requests/responses against a shared
// apis/metacontroller/v1alpha1 vocabulary instead of inventing one.
package conversion

import (
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// ConvertFunc converts objects to desiredAPIVersion and must return
// them in the same order it received them, per spec.md §4.9 and
// invariant 5 in §8.
type ConvertFunc func(objects []runtime.RawExtension, desiredAPIVersion string) ([]runtime.RawExtension, error)

// BuildResponse runs fn against req and always returns a
// ConversionResponse: ConvertedObjects is exactly len(req.Objects) on
// success and empty on any failure, including a nil req (a parse
// failure upstream of the request itself, per spec.md §4.9's note
// that such a response is permitted and carries an empty uid).
func BuildResponse(req *apiextensionsv1.ConversionRequest, fn ConvertFunc) *apiextensionsv1.ConversionResponse {
	if req == nil {
		return &apiextensionsv1.ConversionResponse{
			Result: metav1.Status{
				Status:  metav1.StatusFailure,
				Message: "no ConversionRequest present in ConversionReview",
				Reason:  metav1.StatusReasonBadRequest,
			},
			ConvertedObjects: []runtime.RawExtension{},
		}
	}

	converted, err := fn(req.Objects, req.DesiredAPIVersion)
	if err == nil && len(converted) != len(req.Objects) {
		err = fmt.Errorf("converter returned %d objects for %d inputs", len(converted), len(req.Objects))
	}
	if err != nil {
		return &apiextensionsv1.ConversionResponse{
			UID: req.UID,
			Result: metav1.Status{
				Status:  metav1.StatusFailure,
				Message: err.Error(),
			},
			ConvertedObjects: []runtime.RawExtension{},
		}
	}
	return &apiextensionsv1.ConversionResponse{
		UID:              req.UID,
		Result:           metav1.Status{Status: metav1.StatusSuccess},
		ConvertedObjects: converted,
	}
}

// Review wraps resp into a complete ConversionReview envelope of the
// same apiVersion/kind as apiextensions-apiserver expects on the wire.
func Review(resp *apiextensionsv1.ConversionResponse) apiextensionsv1.ConversionReview {
	return apiextensionsv1.ConversionReview{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apiextensions.k8s.io/v1",
			Kind:       "ConversionReview",
		},
		Response: resp,
	}
}
