package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/audit"
)

func newTransformer(t *testing.T) *Transformer {
	t.Helper()
	rules, err := audit.NewRuleSet(map[audit.EventType]audit.Rule{
		audit.TypeUpdate: {Digestible: true, DigestWindow: 5 * time.Minute, DigestFieldsLimit: 25},
		"submit":         {Sync: true},
	}, []audit.EventType{"submit"})
	require.NoError(t, err)
	return New(rules)
}

func TestTransform_Update(t *testing.T) {
	tr := newTransformer(t)

	res, err := tr.Transform(Change{
		Type:     "update",
		Resource: audit.Resource{ID: "doc-1", Name: "Quarterly report"},
		Actor:    audit.Actor{ID: "u-1", Name: "Dana"},
		Fields: map[string]audit.FieldChange{
			"title": {Old: "Draft", New: "Final"},
		},
		Tags: []string{"docs", "critical"},
	})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	e := res.Events[0]
	assert.Equal(t, audit.TypeUpdate, e.Type)
	assert.Equal(t, []string{"docs", "critical"}, e.Tags, "tags attach verbatim")
	assert.True(t, e.Rule.Digestible, "rule resolved at construction")
	assert.False(t, e.Timestamp.IsZero(), "missing timestamp is filled in")
	assert.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	assert.Empty(t, res.Unchanged)
}

func TestTransform_ReservedCustomType(t *testing.T) {
	tr := newTransformer(t)

	_, err := tr.Transform(Change{
		Type:     "delete",
		Custom:   true,
		Resource: audit.Resource{ID: "doc-1"},
	})
	var reserved *audit.ReservedNameError
	require.ErrorAs(t, err, &reserved)
	assert.Equal(t, "delete", reserved.Name)
}

func TestTransform_UpdateRequiresOldAndNew(t *testing.T) {
	tr := newTransformer(t)

	_, err := tr.Transform(Change{
		Type:     "update",
		Resource: audit.Resource{ID: "doc-1"},
		Fields: map[string]audit.FieldChange{
			"title": {New: "Final"},
		},
	})
	var validation *audit.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "title", validation.Field)
}

func TestTransform_UnchangedFieldFlaggedNotFatal(t *testing.T) {
	tr := newTransformer(t)

	res, err := tr.Transform(Change{
		Type:     "update",
		Resource: audit.Resource{ID: "doc-1"},
		Fields: map[string]audit.FieldChange{
			"title": {Old: "Same", New: "Same"},
			"state": {Old: "open", New: "closed"},
		},
		FieldOrder: []string{"title", "state"},
	})
	require.NoError(t, err, "old == new is permitted")
	assert.Equal(t, []string{"title"}, res.Unchanged)
}

func TestTransform_Validation(t *testing.T) {
	tr := newTransformer(t)

	cases := []struct {
		name   string
		change Change
	}{
		{"missing type", Change{Resource: audit.Resource{ID: "r"}}},
		{"missing resource id", Change{Type: "create"}},
		{"too many categories", Change{
			Type:     "create",
			Resource: audit.Resource{ID: "r", Categories: []string{"a", "b", "c", "d"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.Transform(tc.change)
			var validation *audit.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestTransform_DefaultRuleForUnknownType(t *testing.T) {
	tr := newTransformer(t)

	res, err := tr.Transform(Change{
		Type:     "archive",
		Resource: audit.Resource{ID: "doc-1"},
	})
	require.NoError(t, err, "unconfigured type falls back to the safe default")
	assert.Equal(t, audit.DefaultRule, res.Events[0].Rule)
}

func TestTransform_OverrideResolution(t *testing.T) {
	tr := newTransformer(t)

	window := time.Minute
	res, err := tr.Transform(Change{
		Type:     "update",
		Resource: audit.Resource{ID: "doc-1"},
		Fields: map[string]audit.FieldChange{
			"title": {Old: "a", New: "b"},
		},
		Override: &audit.RuleOverride{DigestWindow: &window},
	})
	require.NoError(t, err)
	assert.Equal(t, window, res.Events[0].Rule.DigestWindow)
}

func TestTransform_FieldOrderPreserved(t *testing.T) {
	tr := newTransformer(t)

	res, err := tr.Transform(Change{
		Type:     "update",
		Resource: audit.Resource{ID: "doc-1"},
		Fields: map[string]audit.FieldChange{
			"zeta":  {Old: 1, New: 2},
			"alpha": {Old: 3, New: 4},
		},
		FieldOrder: []string{"zeta", "alpha"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, res.Events[0].FieldOrder)
}

func TestTransformAll_EmptyBatchFails(t *testing.T) {
	tr := newTransformer(t)
	_, err := tr.TransformAll(nil)
	var validation *audit.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestTransformAll_OrderedSequence(t *testing.T) {
	tr := newTransformer(t)

	res, err := tr.TransformAll([]Change{
		{Type: "create", Resource: audit.Resource{ID: "doc-1"}},
		{Type: "submit", Resource: audit.Resource{ID: "doc-1"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, audit.TypeCreate, res.Events[0].Type)
	assert.Equal(t, audit.EventType("submit"), res.Events[1].Type)
	assert.True(t, res.Events[1].Rule.Sync, "registered custom rule applied")
}
