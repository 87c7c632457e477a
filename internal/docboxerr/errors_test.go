package docboxerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs_MatchesKindThroughWrapping(t *testing.T) {
	base := New(NotFound, "folder abc")
	wrapped := fmt.Errorf("repository.FolderRepo.Get: %w", base)

	if !Is(wrapped, NotFound) {
		t.Error("expected Is to match NotFound through fmt.Errorf wrapping")
	}
	if Is(wrapped, Conflict) {
		t.Error("expected Is not to match a different Kind")
	}
}

func TestIs_FalseForPlainError(t *testing.T) {
	if Is(errors.New("boom"), NotFound) {
		t.Error("expected Is to return false for a non-docboxerr error")
	}
}

func TestWrap_UnwrapsToCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(StorageFailure, "store upload", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestValidation_IncludesField(t *testing.T) {
	err := Validation("name", "must not be empty")
	if err.Field != "name" {
		t.Errorf("Field = %q, want %q", err.Field, "name")
	}
	if !Is(err, ValidationFailed) {
		t.Error("expected Is to match ValidationFailed")
	}
}

func TestProcessing_IncludesStage(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := Processing("derive", "office conversion failed", cause)
	if err.Stage != "derive" {
		t.Errorf("Stage = %q, want %q", err.Stage, "derive")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}
