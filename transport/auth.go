// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package transport

import (
	"bytes"
	"context"

	"github.com/cubefs/mds/proto"
)

// Authorizer verifies a connecting peer's credentials against the
// monitor's rotating secrets (spec.md §4.F). One is registered per peer
// type (cluster vs. service/client) in an AuthRegistry.
type Authorizer interface {
	Verify(ctx context.Context, globalID proto.GlobalID, token []byte, secret []byte) error
}

// AuthRegistry dispatches to the Authorizer registered for a peer type.
type AuthRegistry struct {
	byType map[proto.SenderType]Authorizer
}

func NewAuthRegistry() *AuthRegistry {
	return &AuthRegistry{byType: make(map[proto.SenderType]Authorizer)}
}

func (r *AuthRegistry) Register(t proto.SenderType, a Authorizer) {
	r.byType[t] = a
}

func (r *AuthRegistry) For(t proto.SenderType) (Authorizer, bool) {
	a, ok := r.byType[t]
	return a, ok
}

// SharedSecretAuthorizer is the default Authorizer: it checks the
// presented token against the monitor's current rotating secret for this
// peer type.
type SharedSecretAuthorizer struct {
	Mon MonitorClient
	Typ proto.SenderType
}

func (s *SharedSecretAuthorizer) Verify(ctx context.Context, globalID proto.GlobalID, token, secret []byte) error {
	want := s.Mon.RotatingSecret(s.Typ)
	if !bytes.Equal(token, want) {
		return errInvalidAuth
	}
	return nil
}

var errInvalidAuth = &authError{"invalid or stale credentials"}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }
