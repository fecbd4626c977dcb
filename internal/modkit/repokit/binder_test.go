package repokit

import (
	"context"
	"testing"

	"obsledger/internal/platform/store"
	"obsledger/internal/platform/testkit"
)

type fakeQ struct{}

func (f *fakeQ) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	var z store.CommandTag
	return z, nil
}

func (f *fakeQ) Query(context.Context, string, ...any) (store.Rows, error) {
	var z store.Rows
	return z, nil
}

func (f *fakeQ) QueryRow(context.Context, string, ...any) store.Row {
	var z store.Row
	return z
}

var _ Queryer = (*fakeQ)(nil)

func TestBindFuncCallsFunc(t *testing.T) {
	t.Parallel()

	var q Queryer // nil is fine; BindFunc doesn't use it
	b := BindFunc[string](func(Queryer) string { return "ok" })

	if got := b.Bind(q); got != "ok" {
		t.Fatalf("BindFunc.Bind = %q, want ok", got)
	}
}

func TestRequireQueryerPanicsOnNil(t *testing.T) {
	t.Parallel()

	var q Queryer
	testkit.MustPanic(t, func() { _ = RequireQueryer(q) })
}

func TestMustBindPanicsOnNilQueryer(t *testing.T) {
	t.Parallel()

	var q Queryer
	b := BindFunc[int](func(Queryer) int { return 42 })
	testkit.MustPanic(t, func() { _ = MustBind[int](b, q) })
}

func TestRequireQueryerReturnsSame(t *testing.T) {
	t.Parallel()

	var in Queryer = &fakeQ{}
	if out := RequireQueryer(in); out != in {
		t.Fatalf("RequireQueryer did not return the same instance")
	}
}
