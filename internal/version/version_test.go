// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	defer func(pre, build string) {
		PreRelease, BuildMetadata = pre, build
	}(PreRelease, BuildMetadata)

	PreRelease, BuildMetadata = "pre", "dev"
	assert.Equal(t, "0.1.0-pre+dev", String())

	PreRelease, BuildMetadata = "", ""
	assert.Equal(t, "0.1.0", String())

	PreRelease, BuildMetadata = "rc_1", "ci.42!"
	assert.Equal(t, "0.1.0-rc1+ci.42", String())
}
