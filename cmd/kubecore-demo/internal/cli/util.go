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

package cli

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/json"

	"github.com/kubecore/kubecore/pkg/errorboundary"
)

// decodeToMap and encodeMap give the conversion demo's ConvertFunc a
// generic map[string]interface{} view of each object's raw JSON
// without depending on a typed schema, mirroring how the watcher
// itself stays agnostic of concrete object shapes.
func decodeToMap(raw []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeMap(m map[string]interface{}) ([]byte, error) {
	return json.Marshal(m)
}

// splitGroupVersion splits "group/version" into its two parts, or
// treats the whole string as the version for the core group, the way
// schema.Resource.APIVersion does in reverse.
func splitGroupVersion(groupVersion string) (group, version string) {
	if i := strings.Index(groupVersion, "/"); i >= 0 {
		return groupVersion[:i], groupVersion[i+1:]
	}
	return "", groupVersion
}

// describeEntry renders an errorboundary.Entry for log output,
// falling back to the parse error when the typed decode failed.
func describeEntry(e errorboundary.Entry) string {
	if e.Meta == nil {
		return "<unparseable>"
	}
	name := e.Meta.GetNamespace() + "/" + e.Meta.GetName()
	if name[0] == '/' {
		name = e.Meta.GetName()
	}
	if !e.OK() {
		return name + " (decode error: " + e.Err.Error() + ")"
	}
	return name
}
