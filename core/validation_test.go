package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc:  &Document{Content: "The Ordinance shall come into force at once."},
		},
		{
			name: "valid document with metadata",
			doc: &Document{
				Content:  "সংবিধান প্রজাতন্ত্রের সর্বোচ্চ আইন।",
				Metadata: Metadata{MetaCategory: "constitution", MetaLanguage: "bn"},
			},
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty content",
			doc:     &Document{Content: ""},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "whitespace only content",
			doc:     &Document{Content: "  \t\n "},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
