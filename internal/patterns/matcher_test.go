package patterns_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/patterns"
	"strikearr/internal/services"
)

func TestSuffixGlobIsCaseInsensitive(t *testing.T) {
	set := patterns.MustCompile("*.nfo")
	assert.True(t, set.Matches("movie.nfo"))
	assert.True(t, set.Matches("MOVIE.NFO"))
	assert.True(t, set.Matches("Movie.Nfo"))
	assert.False(t, set.Matches("movie.nfo.part"))
}

func TestRegexAnchoring(t *testing.T) {
	set := patterns.MustCompile("regex:^sample")
	assert.True(t, set.Matches("sample.mkv"))
	assert.True(t, set.Matches("SAMPLE.mkv"))
	assert.False(t, set.Matches("not-a-sample.mkv"))

	unanchored := patterns.MustCompile(`regex:x26[45]`)
	assert.True(t, unanchored.Matches("Show.S01E01.1080p.X265-GRP.mkv"))
}

func TestGlobForms(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"sample*", "Sample-movie.mkv", true},
		{"sample*", "movie-sample.mkv", false},
		{"*sample*", "movie-SAMPLE.mkv", true},
		{"*sample*", "movie.mkv", false},
		{"keep.mkv", "KEEP.MKV", true},
		{"keep.mkv", "keep.mkv.part", false},
		{"*", "anything", true},
	}
	for _, tc := range cases {
		t.Run(tc.pattern+"/"+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, patterns.MustCompile(tc.pattern).Matches(tc.name))
		})
	}
}

func TestCompileSkipsBlankPatterns(t *testing.T) {
	set, err := patterns.Compile([]string{"", "   ", "*.exe"})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, []string{"*.exe"}, set.Patterns())
}

func TestCompileRejectsBadRegex(t *testing.T) {
	_, err := patterns.Compile([]string{"*.nfo", "regex:(unclosed"})
	require.Error(t, err)

	var invalid *patterns.InvalidPatternError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "regex:(unclosed", invalid.Pattern)
	assert.True(t, errors.Is(err, services.ErrConfiguration))
}

func TestCompileRejectsInteriorWildcard(t *testing.T) {
	_, err := patterns.Compile([]string{"foo*bar"})
	require.Error(t, err)
}

func TestBlockListModes(t *testing.T) {
	rules := patterns.MustCompile("*.mkv", "*.mp4")

	whitelist := patterns.BlockList{Mode: patterns.ModeWhitelist, Rules: rules}
	assert.True(t, whitelist.Blocked("setup.exe"))
	assert.False(t, whitelist.Blocked("Movie.MKV"))

	blacklist := patterns.BlockList{Mode: patterns.ModeBlacklist, Rules: rules}
	assert.True(t, blacklist.Blocked("Movie.mkv"))
	assert.False(t, blacklist.Blocked("setup.exe"))
}

func TestEmptyBlockLists(t *testing.T) {
	empty := patterns.MustCompile()
	assert.False(t, patterns.BlockList{Mode: patterns.ModeBlacklist, Rules: empty}.Blocked("x.mkv"))
	assert.True(t, patterns.BlockList{Mode: patterns.ModeWhitelist, Rules: empty}.Blocked("x.mkv"))
	assert.False(t, patterns.BlockList{Mode: patterns.ModeBlacklist}.Blocked("x.mkv"))
}

func TestParseMode(t *testing.T) {
	mode, err := patterns.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, patterns.ModeBlacklist, mode)

	mode, err = patterns.ParseMode("WhiteList")
	require.NoError(t, err)
	assert.Equal(t, patterns.ModeWhitelist, mode)

	_, err = patterns.ParseMode("greylist")
	assert.True(t, errors.Is(err, services.ErrConfiguration))
}
