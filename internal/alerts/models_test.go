package alerts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestAlertChildRowsCascadeOnDelete(t *testing.T) {
	s, err := schema.Parse(&Alert{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, name := range []string{"Areas", "Deliveries"} {
		rel, ok := s.Relationships.Relations[name]
		require.True(t, ok, "missing %s association", name)

		constraint := rel.ParseConstraint()
		require.NotNil(t, constraint, "%s has no foreign key constraint", name)
		assert.Equal(t, "CASCADE", constraint.OnDelete, "%s rows must go with the alert", name)
	}
}
