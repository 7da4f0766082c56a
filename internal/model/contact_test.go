package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholderName(t *testing.T) {
	assert.Equal(t, "Контакт #7", PlaceholderName(NewFlexID("7")))
	assert.Equal(t, "Контакт #42", PlaceholderName(NewFlexID("42.0")))
}

func TestIsPlaceholderNamed(t *testing.T) {
	last := "Петров"

	tests := []struct {
		name    string
		contact Contact
		want    bool
	}{
		{
			name:    "synthesized name",
			contact: Contact{FirstName: PlaceholderName(NewFlexID("7"))},
			want:    true,
		},
		{
			name:    "real first name",
			contact: Contact{FirstName: "Иван"},
			want:    false,
		},
		{
			name:    "placeholder prefix but last name present",
			contact: Contact{FirstName: "Контакт #7", LastName: &last},
			want:    false,
		},
		{
			name:    "empty name",
			contact: Contact{},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.contact.IsPlaceholderNamed())
		})
	}
}
