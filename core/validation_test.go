package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSource(t *testing.T) {
	valid := func() *Source {
		return &Source{
			ID:            "s1",
			ProjectID:     "p1",
			Name:          "notes.txt",
			FileExtension: "txt",
			Status:        StatusUploaded,
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Source)
		nilIt   bool
		wantErr error
	}{
		{name: "valid source", mutate: func(*Source) {}},
		{name: "nil source", nilIt: true, wantErr: ErrInvalidSource},
		{name: "empty id", mutate: func(s *Source) { s.ID = "" }, wantErr: ErrEmptySourceID},
		{name: "empty project", mutate: func(s *Source) { s.ProjectID = "" }, wantErr: ErrEmptyProjectID},
		{name: "project with colon", mutate: func(s *Source) { s.ProjectID = "a:b" }, wantErr: ErrInvalidProjectID},
		{name: "empty name", mutate: func(s *Source) { s.Name = "" }, wantErr: ErrEmptySourceName},
		{name: "unknown status", mutate: func(s *Source) { s.Status = "done" }, wantErr: ErrInvalidStatus},
		{name: "extension with separator", mutate: func(s *Source) { s.FileExtension = "../txt" }, wantErr: ErrInvalidSource},
		{name: "empty extension is fine", mutate: func(s *Source) { s.FileExtension = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *Source
			if !tt.nilIt {
				s = valid()
				tt.mutate(s)
			}
			err := ValidateSource(s)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			assert.ErrorIs(t, err, ErrInvalidSource)
		})
	}
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, "pdf", NormalizeExtension(".PDF"))
	assert.Equal(t, "docx", NormalizeExtension(" docx "))
	assert.Equal(t, "", NormalizeExtension(""))
}

func TestValidateProjectID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr error
	}{
		{"project-1", nil},
		{"Research 2025", nil},
		{"", ErrEmptyProjectID},
		{"a:b", ErrInvalidProjectID},
		{"a/b", ErrInvalidProjectID},
		{`a\b`, ErrInvalidProjectID},
		{"..", ErrInvalidProjectID},
		{".", ErrInvalidProjectID},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateProjectID(tt.id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
