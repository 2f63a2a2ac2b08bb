package dns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rcWithSearch(t *testing.T, ndots int, search ...string) *ResolvConf {
	t.Helper()
	var b strings.Builder
	b.WriteString("search ")
	b.WriteString(strings.Join(search, " "))
	b.WriteString("\noptions ndots:")
	b.WriteString(itoaHelper(ndots))
	b.WriteString("\n")
	rc, err := LoadResolvConf(strings.NewReader(b.String()))
	require.NoError(t, err)
	return rc
}

func itoaHelper(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

// A name below the ndots threshold tries every search suffix before the
// bare name, and a bare trailing empty read signals exhaustion.
func TestSearchBelowNdotsTriesSuffixesThenBareName(t *testing.T) {
	rc := rcWithSearch(t, 1, "example.com", "corp.example.com")

	var state SearchState
	var got []string
	for i := 0; i < 10; i++ {
		cand, err := Search("host", rc, &state)
		require.NoError(t, err)
		if cand == "" {
			break
		}
		got = append(got, cand)
	}

	assert.Equal(t, []string{
		"host.example.com.",
		"host.corp.example.com.",
		"host.",
	}, got)
}

// A name meeting the ndots threshold is tried bare first, then still
// walks the search list, but does not retry the bare name again at the end.
func TestSearchAtNdotsTriesBareNameFirst(t *testing.T) {
	rc := rcWithSearch(t, 1, "example.com", "corp.example.com")

	var state SearchState
	var got []string
	for i := 0; i < 10; i++ {
		cand, err := Search("host.sub", rc, &state)
		require.NoError(t, err)
		if cand == "" {
			break
		}
		got = append(got, cand)
	}

	assert.Equal(t, []string{
		"host.sub.",
		"host.sub.example.com.",
		"host.sub.corp.example.com.",
	}, got)
}

func TestSearchWithEmptySearchListAndBelowNdots(t *testing.T) {
	rc, err := LoadResolvConf(strings.NewReader("options ndots:1\n"))
	require.NoError(t, err)

	var state SearchState
	cand, err := Search("host", rc, &state)
	require.NoError(t, err)
	assert.Equal(t, "host.", cand)

	cand, err = Search("host", rc, &state)
	require.NoError(t, err)
	assert.Equal(t, "", cand)
}

func TestSearchStateIsExhaustedAfterDone(t *testing.T) {
	rc := rcWithSearch(t, 1, "example.com")
	var state SearchState
	for i := 0; i < 10; i++ {
		cand, err := Search("host", rc, &state)
		require.NoError(t, err)
		if cand == "" {
			break
		}
	}
	// Further calls against an already-exhausted state keep returning "".
	cand, err := Search("host", rc, &state)
	require.NoError(t, err)
	assert.Equal(t, "", cand)
}
