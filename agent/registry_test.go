package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryCoversAllWorkers(t *testing.T) {
	r := NewRegistry()
	names := make(map[Worker]bool)
	for _, e := range r.List() {
		names[e.Name] = true
	}

	for _, w := range []Worker{Coordinator, Planner, Supervisor, Researcher, Coder, Browser, Reporter, Translator} {
		assert.True(t, names[w], "expected %s to be registered", w)
	}
}

func TestMandatoryWorkersCannotBeOmitted(t *testing.T) {
	r := NewRegistry()
	mandatory := r.Mandatory()

	for _, w := range []Worker{Coordinator, Planner, Supervisor, Reporter} {
		assert.Contains(t, mandatory, w)
	}
	for _, w := range []Worker{Researcher, Coder, Browser, Translator} {
		assert.NotContains(t, mandatory, w)
	}
}

func TestValidateRosterRejectsEmpty(t *testing.T) {
	r := NewRegistry()
	err := r.ValidateRoster(nil)
	require.Error(t, err)
}

func TestValidateRosterRejectsMissingMandatory(t *testing.T) {
	r := NewRegistry()
	err := r.ValidateRoster([]string{"researcher"})
	require.Error(t, err)
}

func TestValidateRosterRejectsUnknownWorker(t *testing.T) {
	r := NewRegistry()
	roster := []string{"coordinator", "planner", "supervisor", "reporter", "ghost"}
	err := r.ValidateRoster(roster)
	require.Error(t, err)
}

func TestValidateRosterAcceptsValidRoster(t *testing.T) {
	r := NewRegistry()
	roster := []string{"coordinator", "planner", "supervisor", "reporter", "researcher"}
	err := r.ValidateRoster(roster)
	require.NoError(t, err)
}
