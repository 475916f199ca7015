package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_DiffersByQueryButNotByFilterOrder(t *testing.T) {
	a := fingerprint("proj", "greet user", []string{"go", "python"}, nil, "", 10, 0, HybridAuto)
	b := fingerprint("proj", "greet user", []string{"python", "go"}, nil, "", 10, 0, HybridAuto)
	assert.Equal(t, a, b, "filter order must not change the fingerprint")

	c := fingerprint("proj", "greet admin", []string{"go", "python"}, nil, "", 10, 0, HybridAuto)
	assert.NotEqual(t, a, c, "a different query must change the fingerprint")
}

func TestFingerprintWithoutQuery_IgnoresQueryText(t *testing.T) {
	a := fingerprintWithoutQuery("proj", []string{"go"}, nil, "", 10, 0, HybridAuto)
	b := fingerprintWithoutQuery("proj", []string{"go"}, nil, "", 10, 0, HybridAuto)
	assert.Equal(t, a, b)

	c := fingerprintWithoutQuery("proj", []string{"python"}, nil, "", 10, 0, HybridAuto)
	assert.NotEqual(t, a, c, "a different filter set must change the bucket key")
}

func TestOverFetchLimit(t *testing.T) {
	assert.Equal(t, 20, overFetchLimit(10))
	assert.Equal(t, 100, overFetchLimit(80))
	assert.Equal(t, 10, overFetchLimit(5))
}

func TestDecideMode_AutoIgnoresWordCountWithoutIdentifierToken(t *testing.T) {
	assert.False(t, decideMode(HybridAuto, "authentication handler"), "multi-word query with no identifier token must stay vector-only under auto")
	assert.True(t, decideMode(HybridAuto, "authenticationHandler"), "camelCase token must trigger the lexical arm under auto")
	assert.True(t, decideMode(HybridAuto, "auth_handler"), "snake_case token must trigger the lexical arm under auto")
	assert.True(t, decideMode(HybridOn, "authentication handler"), "explicit on always runs the lexical arm")
	assert.False(t, decideMode(HybridOff, "authenticationHandler"), "explicit off never runs the lexical arm")
}
