package ftppath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeStringRoundTrip(t *testing.T) {
	for _, typ := range []Type{Unknown, Empty, Unix, Windows, Netware, OS2, OpenVMS, MVS, IBMzVM, AS400, Tandem} {
		assert.Equal(t, typ, ParseType(typ.String()), typ.String())
	}
	assert.Equal(t, Unknown, ParseType("nonsense"))
}

func TestCaseSensitivity(t *testing.T) {
	assert.True(t, Unix.CaseSensitive())
	assert.False(t, Windows.CaseSensitive())
	assert.False(t, OpenVMS.CaseSensitive())
}

func TestJoinAndSplit(t *testing.T) {
	assert.Equal(t, "/home/bob", Unix.Join("/home", "bob"))
	assert.Equal(t, "/home/bob", Unix.Join("/home/", "bob"))
	assert.Equal(t, `C:\data\file.txt`, Windows.Join(`C:\data`, "file.txt"))

	dir, name := Unix.Split("/home/bob/report.txt")
	assert.Equal(t, "/home/bob", dir)
	assert.Equal(t, "report.txt", name)

	dir, name = Unix.Split("report.txt")
	assert.Equal(t, "", dir)
	assert.Equal(t, "report.txt", name)
}

func TestEqualAndCompareRespectCase(t *testing.T) {
	assert.True(t, Windows.Equal(`C:\Data`, `c:\data`))
	assert.False(t, Unix.Equal("/Data", "/data"))

	assert.Equal(t, -1, Windows.Compare("a", "B"))
	assert.Equal(t, 1, Unix.Compare("a", "B"))
	assert.NotEqual(t, 0, Unix.Compare("a", "b"))
}

func TestHasPrefixRequiresBoundary(t *testing.T) {
	assert.True(t, Unix.HasPrefix("/home/bob/x", "/home/bob"))
	assert.False(t, Unix.HasPrefix("/home/bobby", "/home/bob"))
	assert.True(t, Unix.HasPrefix("/home/bob", "/home/bob"))
}

func TestIsAbsolute(t *testing.T) {
	assert.True(t, Unix.IsAbsolute("/a/b"))
	assert.False(t, Unix.IsAbsolute("a/b"))
	assert.True(t, Windows.IsAbsolute(`C:\a`))
	assert.True(t, Windows.IsAbsolute(`\a`))
	assert.True(t, OpenVMS.IsAbsolute("[DIR]FILE.TXT"))
}
