package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFirstSuccess_ReturnsFirstSuccess(t *testing.T) {
	var order []string
	attempts := []Attempt[string]{
		{Name: "a", Do: func(context.Context) (string, error) {
			order = append(order, "a")
			return "", errors.New("a failed")
		}},
		{Name: "b", Do: func(context.Context) (string, error) {
			order = append(order, "b")
			return "from-b", nil
		}},
		{Name: "c", Do: func(context.Context) (string, error) {
			order = append(order, "c")
			return "from-c", nil
		}},
	}

	got, err := FirstSuccess(context.Background(), attempts)
	if err != nil {
		t.Fatalf("FirstSuccess() error = %v", err)
	}
	if got != "from-b" {
		t.Errorf("FirstSuccess() = %q, want %q", got, "from-b")
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("attempt order = %v, want [a b] (c must not run)", order)
	}
}

func TestFirstSuccess_AggregatesAllFailures(t *testing.T) {
	attempts := []Attempt[int]{
		{Name: "primary", Do: func(context.Context) (int, error) { return 0, errors.New("boom-1") }},
		{Name: "mirror", Do: func(context.Context) (int, error) { return 0, errors.New("boom-2") }},
	}

	_, err := FirstSuccess(context.Background(), attempts)
	if err == nil {
		t.Fatal("FirstSuccess() should fail when every attempt fails")
	}
	for _, want := range []string{"primary", "boom-1", "mirror", "boom-2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("aggregate error %q missing %q", err, want)
		}
	}
}

func TestFirstSuccess_NoAttempts(t *testing.T) {
	if _, err := FirstSuccess[string](context.Background(), nil); err == nil {
		t.Error("FirstSuccess() with no attempts should fail")
	}
}

func TestFirstSuccess_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	attempts := []Attempt[string]{
		{Name: "a", Do: func(context.Context) (string, error) {
			ran = true
			return "x", nil
		}},
	}

	if _, err := FirstSuccess(ctx, attempts); err == nil {
		t.Error("FirstSuccess() with cancelled context should fail")
	}
	if ran {
		t.Error("attempt ran despite cancelled context")
	}
}
