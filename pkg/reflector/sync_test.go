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

package reflector

import (
	"context"
	"testing"
	"time"

	"github.com/kubecore/kubecore/pkg/errorboundary"
)

func TestWaitForSyncSucceedsAfterRestart(t *testing.T) {
	writer, reader := NewStore()
	writer.ApplyRestarted([]errorboundary.Entry{entryFor("a", "1")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if !WaitForSync(ctx, "widgets", reader) {
		t.Fatal("expected WaitForSync to succeed once Restarted was applied")
	}
}

func TestWaitForSyncFailsOnCancel(t *testing.T) {
	_, reader := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if WaitForSync(ctx, "widgets", reader) {
		t.Fatal("expected WaitForSync to fail on a canceled context")
	}
}
