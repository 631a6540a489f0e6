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

// Package errors holds the sentinel errors returned by the controller and
// the code/message mapping used to surface them to admin clients.
package errors

import "errors"

var (
	ErrAlreadyStopping     = errors.New("suicide already in progress")
	ErrReadOnly            = errors.New("filesystem is read-only")
	ErrAuthFailed          = errors.New("authentication with monitor failed")
	ErrCommandRegistered   = errors.New("admin command hook already registered")
	ErrInvalidClientID     = errors.New("client id is not numeric")
	ErrSessionNotFound     = errors.New("session not found")
	ErrTargetRankInvalid   = errors.New("target rank is invalid for export")
	ErrTargetRankIsSelf    = errors.New("target rank is this daemon's own rank")
	ErrTargetRankNotUp     = errors.New("target rank is not up and in")
	ErrPathNotFound        = errors.New("path does not resolve in cache")
	ErrFragNotAuth         = errors.New("directory fragment is not authoritative on this rank")
	ErrBitsInvalid         = errors.New("split bits must be >= 1")
	ErrProfilerUnsupported = errors.New("profiler support not compiled in")
)

// Code is the admin-visible return code, modeled after errno-style codes
// the original MDS.cc returns from its admin socket (negative on error, 0 on
// success), kept as a plain int so callers never need a dependency on
// syscall-specific errno constants.
type Code int

const (
	CodeOK            Code = 0
	CodeNotFound      Code = -2  // ENOENT
	CodeInvalid       Code = -22 // EINVAL
	CodeReadOnly      Code = -30 // EROFS
	CodeExists        Code = -17 // EEXIST
	CodeNotSupported  Code = -95 // EOPNOTSUPP
	CodeInternal      Code = -1
)

// ToCode maps a sentinel error (or an arbitrary wrapped error) to the
// admin-visible code/message pair described in spec.md §7.
func ToCode(err error) (Code, string) {
	if err == nil {
		return CodeOK, ""
	}

	switch {
	case errors.Is(err, ErrReadOnly):
		return CodeReadOnly, err.Error()
	case errors.Is(err, ErrPathNotFound), errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrTargetRankIsSelf), errors.Is(err, ErrFragNotAuth):
		return CodeNotFound, err.Error()
	case errors.Is(err, ErrTargetRankInvalid), errors.Is(err, ErrTargetRankNotUp),
		errors.Is(err, ErrBitsInvalid), errors.Is(err, ErrInvalidClientID):
		return CodeInvalid, err.Error()
	case errors.Is(err, ErrCommandRegistered):
		return CodeExists, err.Error()
	case errors.Is(err, ErrProfilerUnsupported):
		return CodeNotSupported, err.Error()
	default:
		return CodeInternal, err.Error()
	}
}
