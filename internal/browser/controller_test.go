package browser

import (
	"context"
	"errors"
	"testing"
)

func TestNewControllerStartsStopped(t *testing.T) {
	c := NewController(Config{})
	if got := c.Status(); got != StatusStopped {
		t.Fatalf("Status() = %v, want %v", got, StatusStopped)
	}
}

func TestOperationsOnStoppedControllerReturnNotRunning(t *testing.T) {
	c := NewController(Config{})
	ctx := context.Background()

	if err := c.Navigate(ctx, "https://example.com"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Navigate() error = %v, want ErrNotRunning", err)
	}
	if err := c.Click(ctx, "#submit"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Click() error = %v, want ErrNotRunning", err)
	}
	if _, err := c.ListTabs(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("ListTabs() error = %v, want ErrNotRunning", err)
	}
	if _, err := c.OpenTab(ctx, "https://example.com"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("OpenTab() error = %v, want ErrNotRunning", err)
	}
	if _, err := c.Screenshot(ctx, false); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Screenshot() error = %v, want ErrNotRunning", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewController(Config{})
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() on a never-started controller error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if got := c.Status(); got != StatusStopped {
		t.Fatalf("Status() = %v, want %v", got, StatusStopped)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.setDefaults()
	if cfg.ViewportWidth != defaultViewportWidth || cfg.ViewportHeight != defaultViewportHeight {
		t.Errorf("viewport defaults = %dx%d, want %dx%d", cfg.ViewportWidth, cfg.ViewportHeight, defaultViewportWidth, defaultViewportHeight)
	}
	if cfg.OpTimeout != defaultOpTimeout {
		t.Errorf("OpTimeout default = %v, want %v", cfg.OpTimeout, defaultOpTimeout)
	}
}

func TestDimensionsCenter(t *testing.T) {
	d := &dimensions{x: 10, y: 20, width: 100, height: 50}
	if d.centerX() != 60 {
		t.Errorf("centerX() = %v, want 60", d.centerX())
	}
	if d.centerY() != 45 {
		t.Errorf("centerY() = %v, want 45", d.centerY())
	}
}
