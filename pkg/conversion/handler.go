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
	"io/ioutil"
	"net/http"

	"github.com/golang/glog"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/util/json"
)

// Handler serves a conversion webhook endpoint: one ConversionReview
// in, one ConversionReview out, per request.
type Handler struct {
	Convert ConvertFunc
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		glog.Errorf("conversion: reading request body: %v", err)
		writeReview(w, Review(BuildResponse(nil, h.Convert)))
		return
	}

	var in apiextensionsv1.ConversionReview
	if err := json.Unmarshal(body, &in); err != nil {
		glog.Errorf("conversion: decoding ConversionReview: %v", err)
		writeReview(w, Review(BuildResponse(nil, h.Convert)))
		return
	}

	writeReview(w, Review(BuildResponse(in.Request, h.Convert)))
}

func writeReview(w http.ResponseWriter, review apiextensionsv1.ConversionReview) {
	body, err := json.Marshal(review)
	if err != nil {
		glog.Errorf("conversion: encoding ConversionReview response: %v", err)
		http.Error(w, "internal error encoding conversion response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
