/*
Copyright 2019 The Kubernetes Authors.
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

	"github.com/pkg/errors"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/yaml"
)

const yamlSeparator = "\n---\n"

// splitYAMLDocuments splits raw multi-document YAML on the "---"
// separator, dropping empty documents. Tests use this to load fixture
// object lists for List/Watch response bodies without hand-writing
// JSON.
func splitYAMLDocuments(in []byte) (out [][]byte) {
	for _, doc := range bytes.Split(in, []byte(yamlSeparator)) {
		if len(bytes.TrimSpace(doc)) > 0 {
			out = append(out, doc)
		}
	}
	return out
}

// YAMLToUnstructured converts a single YAML document into an
// Unstructured object.
func YAMLToUnstructured(in []byte) (unstructured.Unstructured, error) {
	var obj unstructured.Unstructured
	jsonBytes, err := yaml.ToJSON(in)
	if err != nil {
		return obj, errors.Wrap(err, "convert YAML to JSON")
	}
	if err := obj.UnmarshalJSON(jsonBytes); err != nil {
		return obj, errors.Wrap(err, "unmarshal JSON into unstructured object")
	}
	return obj, nil
}

// YAMLToUnstructuredSlice splits a multi-document YAML fixture and
// decodes each document, in order, into an Unstructured object. It is
// used by tests to build List page fixtures from a single readable
// YAML block instead of hand-written JSON arrays.
func YAMLToUnstructuredSlice(in []byte) ([]unstructured.Unstructured, error) {
	docs := splitYAMLDocuments(in)
	result := make([]unstructured.Unstructured, 0, len(docs))
	for _, doc := range docs {
		u, err := YAMLToUnstructured(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "document %d", len(result))
		}
		result = append(result, u)
	}
	return result, nil
}
