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

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToCode_NilErrorIsOK(t *testing.T) {
	code, text := ToCode(nil)
	require.Equal(t, CodeOK, code)
	require.Empty(t, text)
}

func TestToCode_MapsSentinelsToTheirCodes(t *testing.T) {
	cases := []struct {
		err  error
		code Code
	}{
		{ErrReadOnly, CodeReadOnly},
		{ErrPathNotFound, CodeNotFound},
		{ErrSessionNotFound, CodeNotFound},
		{ErrTargetRankIsSelf, CodeNotFound},
		{ErrFragNotAuth, CodeNotFound},
		{ErrTargetRankInvalid, CodeInvalid},
		{ErrTargetRankNotUp, CodeInvalid},
		{ErrBitsInvalid, CodeInvalid},
		{ErrInvalidClientID, CodeInvalid},
		{ErrCommandRegistered, CodeExists},
		{ErrProfilerUnsupported, CodeNotSupported},
	}
	for _, c := range cases {
		code, text := ToCode(c.err)
		require.Equal(t, c.code, code, c.err.Error())
		require.NotEmpty(t, text)
	}
}

func TestToCode_UnrecognizedErrorMapsToInternal(t *testing.T) {
	code, _ := ToCode(errors.New("something else"))
	require.Equal(t, CodeInternal, code)
}

func TestToCode_WrappedSentinelStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("flushing journal: %w", ErrReadOnly)
	code, _ := ToCode(wrapped)
	require.Equal(t, CodeReadOnly, code)
}
