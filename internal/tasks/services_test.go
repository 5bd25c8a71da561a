package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServices_Validate(t *testing.T) {
	t.Parallel()

	t.Run("complete services", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, newTestServices(t).Validate())
	})

	tests := []struct {
		name   string
		mutate func(s *Services)
		field  string
	}{
		{name: "missing messages", mutate: func(s *Services) { s.Messages = nil }, field: "Messages"},
		{name: "missing groups", mutate: func(s *Services) { s.Groups = nil }, field: "Groups"},
		{name: "missing transactions", mutate: func(s *Services) { s.Transactions = nil }, field: "Transactions"},
		{name: "missing logger", mutate: func(s *Services) { s.Logger = nil }, field: "Logger"},
		{name: "no retries", mutate: func(s *Services) { s.Retry.MaxRetries = 0 }, field: "MaxRetries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestServices(t).Services
			tt.mutate(svc)

			err := svc.Validate()
			assert.ErrorContains(t, err, tt.field)
		})
	}
}
