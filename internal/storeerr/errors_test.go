package storeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := New(KindNotFound, CodeRecordNotFound, "record.load", "item[abc]")
	assert.Equal(t, "record.load: RECORD_NOT_FOUND: item[abc]", err.Error())
}

func TestError_FormatWithFieldsAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidAssignment,
		Op:      "record.assign",
		Message: "invalid data",
		Fields:  []FieldError{{Field: "label", Message: "required"}},
		Err:     cause,
	}
	assert.Equal(t, "record.assign: INVALID_ASSIGNMENT: invalid data [label: required]: disk full", err.Error())
}

func TestKindHelpers_Wrapped(t *testing.T) {
	base := New(KindCorruption, CodeCorruptIndex, "index.load", "bad")
	wrapped := fmt.Errorf("outer: %w", base)

	assert.True(t, IsCorruption(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, CodeCorruptIndex, CodeOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestBackend_PreservesCause(t *testing.T) {
	cause := errors.New("io failure")
	err := Backend("kv.set", cause)

	assert.True(t, IsBackend(err))
	assert.ErrorIs(t, err, cause)
}

func TestFieldsOf(t *testing.T) {
	err := Validation("record.assign", "invalid", []FieldError{{Field: "rel", Message: "required"}})
	fields := FieldsOf(fmt.Errorf("wrap: %w", err))
	assert.Equal(t, []FieldError{{Field: "rel", Message: "required"}}, fields)
	assert.Nil(t, FieldsOf(errors.New("x")))
}
