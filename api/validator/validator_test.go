package validator

import (
	"strings"
	"testing"
)

type testPost struct {
	Content  string `json:"content" validate:"required,max=280"`
	Category string `json:"category" validate:"required,category"`
	Emoji    string `json:"emoji,omitempty" validate:"omitempty,emoji"`
	Internal string `json:"-" validate:"max=3"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		input   any
		wantErr bool
		fields  []string
	}{
		{
			name: "Valid struct",
			input: testPost{
				Content:  "test",
				Category: "life",
				Emoji:    "😂",
			},
			wantErr: false,
		},
		{
			name:    "Missing required fields",
			input:   testPost{},
			wantErr: true,
			fields:  []string{"content", "category"},
		},
		{
			name: "Unknown category",
			input: testPost{
				Content:  "test",
				Category: "unknown_category",
			},
			wantErr: true,
			fields:  []string{"category"},
		},
		{
			name: "Category is case insensitive",
			input: testPost{
				Content:  "test",
				Category: "LOVE",
			},
			wantErr: false,
		},
		{
			name: "Content too long",
			input: testPost{
				Content:  strings.Repeat("a", 281),
				Category: "life",
			},
			wantErr: true,
			fields:  []string{"content"},
		},
		{
			name: "Content length counts characters",
			input: testPost{
				Content:  strings.Repeat("é", 280),
				Category: "life",
			},
			wantErr: false,
		},
		{
			name: "Unsupported emoji",
			input: testPost{
				Content:  "test",
				Category: "life",
				Emoji:    "👍",
			},
			wantErr: true,
			fields:  []string{"emoji"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := v.ValidateStruct(tt.input)

			if tt.wantErr && len(errors) == 0 {
				t.Error("ValidateStruct() expected errors but got none")
				return
			}

			if !tt.wantErr && len(errors) > 0 {
				t.Errorf("ValidateStruct() got unexpected errors: %v", errors)
				return
			}

			if tt.wantErr {
				foundFields := make(map[string]bool)
				for _, err := range errors {
					foundFields[err.Field] = true
					if err.Message == "" {
						t.Errorf("Validation error for %s has no message", err.Field)
					}
				}
				for _, expectedField := range tt.fields {
					if !foundFields[expectedField] {
						t.Errorf("Expected validation error for field %s, but got none", expectedField)
					}
				}
			}
		})
	}
}

func TestValidator_Messages(t *testing.T) {
	v := New()
	errs := v.ValidateStruct(testPost{Content: "test", Category: "sports"})
	if len(errs) != 1 {
		t.Fatalf("Got %d errors, want 1", len(errs))
	}
	want := "must be one of life, love, anxiety, social, loneliness, validation"
	if errs[0].Message != want {
		t.Errorf("Got message %q, want %q", errs[0].Message, want)
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		value   any
		tag     string
		wantErr bool
	}{
		{
			name:    "Valid emoji",
			value:   "🔥",
			tag:     "emoji",
			wantErr: false,
		},
		{
			name:    "Bare heart",
			value:   "❤",
			tag:     "emoji",
			wantErr: false,
		},
		{
			name:    "Invalid emoji",
			value:   "heart",
			tag:     "emoji",
			wantErr: true,
		},
		{
			name:    "Valid category",
			value:   "anxiety",
			tag:     "category",
			wantErr: false,
		},
		{
			name:    "Required field empty",
			value:   "",
			tag:     "required",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := v.Validate(tt.value, tt.tag)

			if tt.wantErr && len(errors) == 0 {
				t.Error("Validate() expected errors but got none")
			}

			if !tt.wantErr && len(errors) > 0 {
				t.Errorf("Validate() got unexpected errors: %v", errors)
			}
		})
	}
}

func TestNew(t *testing.T) {
	v := New()
	if v == nil || v.cli == nil {
		t.Error("New() returned invalid validator")
	}
}
