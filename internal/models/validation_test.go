package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorsIs(t *testing.T) {
	validation := &ValidationErrors{}
	validation.Add("message", ErrEmptyMessage)

	err := validation.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected errors.Is to match ErrEmptyMessage, got %v", err)
	}
}

func TestValidationErrorsNestedFields(t *testing.T) {
	nested := &ValidationErrors{}
	nested.AddMessage("text", "message text is required")

	validation := &ValidationErrors{}
	validation.Add("payload", nested)

	err := validation.Err()
	if err == nil {
		t.Fatal("expected error")
	}

	list, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors type, got %T", err)
	}
	if len(list.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(list.Errors))
	}
	if list.Errors[0].Field != "payload.text" {
		t.Fatalf("expected field payload.text, got %q", list.Errors[0].Field)
	}
}

func TestValidateOutgoing(t *testing.T) {
	tests := []struct {
		name    string
		conv    string
		body    string
		wantErr error
	}{
		{name: "ok", conv: "c1", body: "hello"},
		{name: "blank body", conv: "c1", body: "   \n", wantErr: ErrEmptyMessage},
		{name: "missing conversation", conv: "", body: "hi", wantErr: ErrMissingConversation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutgoing(tt.conv, tt.body)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateFollowUpTargetCollectsBothFields(t *testing.T) {
	err := ValidateFollowUpTarget("", " ")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingConversation)
	require.ErrorIs(t, err, ErrMissingFollowUp)

	var list *ValidationErrors
	require.ErrorAs(t, err, &list)
	require.Len(t, list.Errors, 2)
	require.NoError(t, ValidateFollowUpTarget("c1", "f1"))
	require.NoError(t, ValidateConversationID("c1"))
}
