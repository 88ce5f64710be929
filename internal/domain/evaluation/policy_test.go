package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicySetEnablesOnlyNeutral(t *testing.T) {
	set := DefaultPolicySet()
	active := set.Active()
	require.Len(t, active, 1)
	assert.Equal(t, PolicyNeutral, active[0].Name)
	assert.Len(t, set.All(), 5)
}

func TestNewPolicySetValidation(t *testing.T) {
	tests := []struct {
		name     string
		policies []Policy
		wantErr  string
	}{
		{name: "nothing enabled", policies: []Policy{{Name: "a"}}, wantErr: "no evaluator policy"},
		{name: "duplicate", policies: []Policy{{Name: "a"}, {Name: "a"}}, wantErr: "duplicate"},
		{name: "unnamed", policies: []Policy{{Name: " "}}, wantErr: "no name"},
		{name: "enabled without review persona", policies: []Policy{{Name: "a", Enabled: true, QualityPersona: "q"}}, wantErr: "review persona"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicySet(tt.policies)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActivePreservesConfiguredOrder(t *testing.T) {
	set, err := NewPolicySet([]Policy{
		{Name: "z", Enabled: true, QualityPersona: "q", ReviewPersona: "r"},
		{Name: "off", QualityPersona: "q", ReviewPersona: "r"},
		{Name: "a", Enabled: true, QualityPersona: "q", ReviewPersona: "r"},
	})
	require.NoError(t, err)
	active := set.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "z", active[0].Name)
	assert.Equal(t, "a", active[1].Name)

	_, ok := set.Lookup("off")
	assert.True(t, ok)
}

func TestQualityPromptCarriesPersonaHintsAndJob(t *testing.T) {
	strict, _ := DefaultPolicySet().Lookup(PolicyStrict)
	prompt := qualityAgentPrompt(strict, poemJob)
	assert.Contains(t, prompt, strict.QualityPersona)
	assert.Contains(t, prompt, "<list of specific, clear shortcomings in the work sample>")
	assert.Contains(t, prompt, "Be critical.")
	assert.Contains(t, prompt, "Job Title: Poem\n")
	assert.Contains(t, prompt, `Instructions: ["English only"]`)
}
