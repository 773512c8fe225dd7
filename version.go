// Copyright (c) 2024 LevelGraph Go Contributors
//
// Permission is hereby granted, free of charge, to any person
// obtaining a copy of this software and associated documentation
// files (the "Software"), to deal in the Software without
// restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the
// Software is furnished to do so, subject to the following
// conditions:
//
// The above copyright notice and this permission notice shall be
// included in all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package hannoygo

import "fmt"

// formatVersion is the current on-disk record format. Bump Major on a
// breaking change to the key schema or value layout.
var formatVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Version is the on-disk version record, written at the end of every Build.
type Version struct {
	Major uint8
	Patch uint8
	Minor uint8
}

func encodeVersion(v Version) []byte {
	return []byte{v.Major, v.Minor, v.Patch}
}

func decodeVersion(b []byte) (Version, error) {
	if len(b) != 3 {
		return Version{}, fmt.Errorf("hannoygo: malformed version record (%d bytes)", len(b))
	}
	return Version{Major: b[0], Minor: b[1], Patch: b[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
