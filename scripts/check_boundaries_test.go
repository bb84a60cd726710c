package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const electionDir = "campus/contexts/academic-governance/election-service"

func TestCheckImport(t *testing.T) {
	cases := []struct {
		name   string
		layer  string
		path   string
		broken []string
	}{
		{"stdlib in domain", "domain", "strings", nil},
		{"own domain from application", "application", electionDir + "/domain/entities", nil},
		{"shared events from application", "application", "campus/internal/shared/events", nil},
		{"uuid from application", "application", "github.com/google/uuid", nil},
		{"adapters from application", "application", electionDir + "/adapters/memory",
			[]string{"application must not import adapters", "application import is outside explicit allowlist"}},
		{"platform from domain", "domain", "campus/internal/platform/config",
			[]string{"domain must not import runtime infrastructure"}},
		{"vendor from domain", "domain", "gorm.io/gorm",
			[]string{"domain import is outside explicit allowlist"}},
		{"other module", "adapters", "campus/contexts/identity-access/student-directory/ports",
			[]string{"cross-module imports are forbidden"}},
		{"adapters may use vendors", "adapters", "gorm.io/gorm", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.broken, checkImport(tc.layer, electionDir, tc.path))
		})
	}
}

func TestCollectViolationsOnRepository(t *testing.T) {
	assert.Empty(t, collectViolations("../contexts"))
}
