package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Côte d'Ivoire":      "cote d ivoire",
		"  Congo -Kinshasa ": "congo kinshasa",
		"SUDAN":              "sudan",
		"per-capita!!rates":  "per capita rates",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{"Côte d'Ivoire", "West Bank and Gaza", "Yemen (North)"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestDefaultChainResolution(t *testing.T) {
	chain := DefaultChain()
	cases := map[string]string{
		// direct alias table
		"Cote d'Ivoire": "CIV",
		"DR Congo":      "COD",
		"Yemen (North)": "YEM",
		// normalized alias lookup
		"côte d'ivoire": "CIV",
		"russia":        "RUS",
		// fuzzy containment
		"Republic of Mali": "MLI",
		// 3-letter heuristic
		"XKX": "XKX",
	}
	for in, want := range cases {
		got, ok := chain.Resolve(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestChainNoMatch(t *testing.T) {
	_, ok := DefaultChain().Resolve("Atlantis Federation")
	assert.False(t, ok)
	_, ok = DefaultChain().Resolve("   ")
	assert.False(t, ok)
}

func TestChainShortCircuits(t *testing.T) {
	calls := 0
	probe := ResolverFunc(func(string) (string, bool) {
		calls++
		return "", false
	})
	chain := Chain{AliasResolver(), probe}
	_, ok := chain.Resolve("Russia")
	require.True(t, ok)
	assert.Zero(t, calls)
}

func TestFuzzyResolverShortestWins(t *testing.T) {
	// "Guinea" is contained in Guinea-Bissau's normalized name too; the
	// shorter canonical name must win.
	got, ok := FuzzyResolver().Resolve("Guinea")
	require.True(t, ok)
	assert.Equal(t, "GIN", got)
}

func TestHintResolverPriority(t *testing.T) {
	hints := HintResolver(map[string]string{"Narnia": "nar", "Bad": "TOOLONG"})
	got, ok := hints.Resolve("narnia")
	require.True(t, ok)
	assert.Equal(t, "NAR", got)

	_, ok = hints.Resolve("Bad")
	assert.False(t, ok)
}

func TestMentionedCountries(t *testing.T) {
	labels, codes := MentionedCountries("Compare GDP between Sudan and South Sudan since 2020")
	assert.Equal(t, []string{"South Sudan", "Sudan"}, labels)
	assert.Equal(t, []string{"SSD", "SDN"}, codes)
}

func TestMentionedCountriesWordBoundary(t *testing.T) {
	// "Iranian" must not match Iran as a phrase.
	_, codes := MentionedCountries("what do Iranian observers report")
	assert.Empty(t, codes)
}

func TestMentionedCountriesDedupesAliases(t *testing.T) {
	_, codes := MentionedCountries("events in DR Congo and Congo-Kinshasa")
	assert.Equal(t, []string{"COD"}, codes)
}
