package keyspace

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/pager/pkg/model"
)

func accountsNamespace(t *testing.T) *Namespace {
	t.Helper()
	ns, err := New("", []string{"account_id", "org_id"}, "bigorg")
	require.NoError(t, err)
	return ns
}

func TestNew_RendersTemplate(t *testing.T) {
	ns := accountsNamespace(t)
	assert.Equal(t, "account_id:{account_id}:org_id:{org_id}:bigorg", ns.String())
	assert.Equal(t, []string{"account_id", "org_id"}, ns.Components())

	withPrefix, err := New("cs", []string{"tenant"}, "")
	require.NoError(t, err)
	assert.Equal(t, "cs:tenant:{tenant}", withPrefix.String())
}

func TestParseTemplate_Errors(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		err  error
	}{
		{"empty", "", ErrEmptyTemplate},
		{"empty segment", "a::b", ErrEmptySegment},
		{"glob literal", "acc*:{id}", ErrInvalidLiteral},
		{"brace literal", "acc{:{id}", ErrInvalidLiteral},
		{"duplicate", "a:{id}:b:{id}", ErrDuplicateVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.tmpl)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestResolve(t *testing.T) {
	ns := accountsNamespace(t)

	tests := []struct {
		name     string
		bindings map[string]string
		glob     string
	}{
		{"nothing bound", nil, "account_id:*:org_id:*:bigorg"},
		{"org bound", map[string]string{"org_id": "40"}, "account_id:*:org_id:40:bigorg"},
		{"explicit wildcard", map[string]string{"org_id": "*", "account_id": "7"}, "account_id:7:org_id:*:bigorg"},
		{"all bound", map[string]string{"org_id": "40", "account_id": "39620"}, "account_id:39620:org_id:40:bigorg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ns.Resolve(tt.bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.glob, p.String())
		})
	}
}

func TestResolve_InvalidBinding(t *testing.T) {
	ns := accountsNamespace(t)

	tests := []struct {
		name     string
		bindings map[string]string
	}{
		{"separator", map[string]string{"org_id": "4:0"}},
		{"glob star inside value", map[string]string{"org_id": "4*"}},
		{"question mark", map[string]string{"org_id": "4?"}},
		{"bracket", map[string]string{"org_id": "[4]"}},
		{"backslash", map[string]string{"org_id": `4\`}},
		{"empty", map[string]string{"org_id": ""}},
		{"unknown component", map[string]string{"user_id": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ns.Resolve(tt.bindings)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidBinding)
			var bindErr *model.BindingError
			assert.ErrorAs(t, err, &bindErr)
		})
	}
}

func TestResolve_IsPure(t *testing.T) {
	ns := accountsNamespace(t)
	bindings := map[string]string{"org_id": "1"}
	a, err := ns.Resolve(bindings)
	require.NoError(t, err)
	b, err := ns.Resolve(bindings)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.Equal(t, map[string]string{"org_id": "1"}, bindings)
}

func TestKeyAndParse(t *testing.T) {
	ns := accountsNamespace(t)

	key, err := ns.Key(map[string]string{"account_id": "5", "org_id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "account_id:5:org_id:1:bigorg", key)

	_, err = ns.Key(map[string]string{"account_id": "5"})
	assert.ErrorIs(t, err, model.ErrInvalidBinding)

	got, err := ns.Parse(key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"account_id": "5", "org_id": "1"}, got)

	_, err = ns.Parse("account_id:5:org_id:1:smallorg")
	assert.Error(t, err)
	_, err = ns.Parse("account_id:5")
	assert.Error(t, err)
}

func TestPattern_Match(t *testing.T) {
	ns := accountsNamespace(t)
	p, err := ns.Resolve(map[string]string{"org_id": "1"})
	require.NoError(t, err)

	assert.True(t, p.Match("account_id:5:org_id:1:bigorg"))
	assert.True(t, p.Match("account_id::org_id:1:bigorg"))
	assert.False(t, p.Match("account_id:5:org_id:2:bigorg"))
	assert.False(t, p.Match("account_id:5:x:org_id:1:bigorg"), "wildcard must not span the separator")
	assert.False(t, p.Match("account_id:5:org_id:1:bigorg:extra"))
	assert.False(t, Pattern{}.Match("anything"))
}

func TestPattern_Regexp(t *testing.T) {
	ns, err := ParseTemplate("cs.v1:{tenant}:docs")
	require.NoError(t, err)
	p, err := ns.Resolve(nil)
	require.NoError(t, err)

	expr := p.Regexp()
	assert.Equal(t, `^cs\.v1:[^:]*:docs$`, expr)

	re := regexp.MustCompile(expr)
	assert.True(t, re.MatchString("cs.v1:t1:docs"))
	assert.False(t, re.MatchString("csXv1:t1:docs"))
	assert.False(t, re.MatchString("cs.v1:t1:x:docs"))
}

func TestPattern_Segments(t *testing.T) {
	ns := accountsNamespace(t)
	p, err := ns.Resolve(map[string]string{"account_id": "3"})
	require.NoError(t, err)

	segs := p.Segments()
	require.Len(t, segs, 5)
	assert.Equal(t, Segment{Literal: "account_id"}, segs[0])
	assert.Equal(t, Segment{Component: "account_id", Literal: "3"}, segs[1])
	assert.Equal(t, Segment{Component: "org_id", Wildcard: true}, segs[3])

	segs[0].Literal = "mutated"
	assert.Equal(t, "account_id", p.Segments()[0].Literal)
}
