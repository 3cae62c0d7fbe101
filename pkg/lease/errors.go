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

package lease

import "fmt"

// Op identifies which step of the elector's lifecycle an Error
// occurred in, per spec.md §4.8's error taxonomy.
type Op string

const (
	AcquireGet    Op = "AcquireGet"
	AcquireCommit Op = "AcquireCommit"
	AcquireWatch  Op = "AcquireWatch"
	RenewWatch    Op = "RenewWatch"
	RenewAcquire  Op = "RenewAcquire"
	ReleaseGet    Op = "ReleaseGet"
	ReleaseCommit Op = "ReleaseCommit"
	// ReleaseAlreadyStolen is reported, not an underlying transport
	// failure: release found the lease already held by someone else.
	ReleaseAlreadyStolen Op = "ReleaseAlreadyStolen"
)

// Error is the elector's error type: every failure names the Op it
// occurred in and, except for ReleaseAlreadyStolen, wraps the
// underlying cause.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsAlreadyStolen reports whether err signals that Release found the
// lease already taken over by a different identity.
func IsAlreadyStolen(err error) bool {
	le, ok := err.(*Error)
	return ok && le.Op == ReleaseAlreadyStolen
}
