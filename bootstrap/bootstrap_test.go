package bootstrap

import (
	"errors"
	"testing"

	"exchangegw/config"
)

func TestRunOrdersByPriority(t *testing.T) {
	Clear()
	defer Clear()

	var order []string
	Register("business", PriorityBusiness, func(ctx *Context) error { order = append(order, "business"); return nil })
	Register("core", PriorityCore, func(ctx *Context) error { order = append(order, "core"); return nil })
	Register("infra", PriorityInfrastructure, func(ctx *Context) error { order = append(order, "infra"); return nil })

	if err := Run(NewContext(config.File{})); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"infra", "core", "business"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("wrong order: got %v, want %v", order, want)
		}
	}
}

func TestRunFailFastStopsRemainingHooks(t *testing.T) {
	Clear()
	defer Clear()

	ran := false
	Register("first", PriorityInfrastructure, func(ctx *Context) error { return errors.New("boom") })
	Register("second", PriorityCore, func(ctx *Context) error { ran = true; return nil })

	if err := Run(NewContext(config.File{})); err == nil {
		t.Fatalf("expected error")
	}
	if ran {
		t.Fatalf("expected second hook to be skipped after first failed")
	}
}

func TestRunSkipsDisabledHooks(t *testing.T) {
	Clear()
	defer Clear()

	ran := false
	Register("conditional", PriorityCore, func(ctx *Context) error { ran = true; return nil }).
		When(func(ctx *Context) bool { return false })

	if err := Run(NewContext(config.File{})); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ran {
		t.Fatalf("expected disabled hook not to run")
	}
}

func TestContextSetGet(t *testing.T) {
	ctx := NewContext(config.File{})
	ctx.Set("key", 42)
	v, ok := ctx.Get("key")
	if !ok || v.(int) != 42 {
		t.Fatalf("expected stored value 42, got %v ok=%v", v, ok)
	}
}
