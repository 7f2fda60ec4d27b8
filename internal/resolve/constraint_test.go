package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/agentx-labs/agentpkg/internal/remote"
)

func inventory(name string, versions ...string) memInventory {
	inv := memInventory{}
	for _, v := range versions {
		inv.add(name, v)
	}
	return inv
}

func TestSelect(t *testing.T) {
	inv := inventory("pkg", "1.0.0", "1.2.0", "1.3.0", "2.0.0", "2.1.0-beta.1")
	r := NewConstraintResolver(inv, nil)

	tests := []struct {
		name   string
		ranges []string
		want   string
	}{
		{"no ranges picks highest stable", nil, "2.0.0"},
		{"wildcard", []string{"*"}, "2.0.0"},
		{"intersection of two ranges", []string{"^1.0.0", "^1.2.0"}, "1.3.0"},
		{"ampersand joined", []string{"^1.0.0 & ^1.2.0"}, "1.3.0"},
		{"exact pin", []string{"1.2.0"}, "1.2.0"},
		{"tilde", []string{"~1.2.0"}, "1.2.0"},
		{"prerelease intent", []string{">=2.1.0-beta.0"}, "2.1.0-beta.1"},
		{"prerelease ignored without intent", []string{">=2.0.0"}, "2.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := r.Select(context.Background(), Request{Name: "pkg", Ranges: tt.ranges})
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if sel.Version != tt.want {
				t.Errorf("Version = %q, want %q", sel.Version, tt.want)
			}
			if sel.Source != SourceLocal {
				t.Errorf("Source = %q, want local", sel.Source)
			}
		})
	}
}

func TestSelectPrereleaseWhenNoStableSatisfies(t *testing.T) {
	r := NewConstraintResolver(inventory("pkg", "1.0.0", "2.0.0-rc.1"), nil)
	sel, err := r.Select(context.Background(), Request{Name: "pkg", Ranges: []string{"^2.0.0"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Version != "2.0.0-rc.1" {
		t.Errorf("Version = %q, want 2.0.0-rc.1", sel.Version)
	}
}

func TestSelectUnversioned(t *testing.T) {
	r := NewConstraintResolver(inventory("scratch", "unversioned"), nil)
	sel, err := r.Select(context.Background(), Request{Name: "scratch"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Version != "unversioned" {
		t.Errorf("Version = %q, want unversioned", sel.Version)
	}

	_, err = r.Select(context.Background(), Request{Name: "scratch", Ranges: []string{"^1.0.0"}})
	var vc *VersionConflictError
	if !errors.As(err, &vc) {
		t.Errorf("err = %v, want VersionConflictError", err)
	}
}

func TestSelectErrors(t *testing.T) {
	r := NewConstraintResolver(inventory("pkg", "1.0.0", "1.1.0"), nil)

	_, err := r.Select(context.Background(), Request{Name: "pkg", Ranges: []string{"^2.0.0"}})
	var vc *VersionConflictError
	if !errors.As(err, &vc) {
		t.Fatalf("err = %v, want VersionConflictError", err)
	}
	if len(vc.Available) != 2 || vc.Available[0] != "1.1.0" {
		t.Errorf("Available = %v, want [1.1.0 1.0.0]", vc.Available)
	}
	if got := vc.Error(); got != "no version of pkg satisfies ^2.0.0 (available: 1.1.0, 1.0.0)" {
		t.Errorf("Error() = %q", got)
	}

	_, err = r.Select(context.Background(), Request{Name: "ghost"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want NotFoundError", err)
	}

	if _, err := r.Select(context.Background(), Request{Name: "pkg", Ranges: []string{"^^1"}}); err == nil {
		t.Error("expected error for unparseable range")
	}
}

func TestSelectModes(t *testing.T) {
	local := inventory("pkg", "1.0.0")
	upstream := inventory("pkg", "1.0.0", "1.5.0")
	upstream.add("remote-only", "0.1.0")

	t.Run("default prefers local", func(t *testing.T) {
		rem := &memRemote{inv: upstream}
		r := NewConstraintResolver(local, rem)
		sel, err := r.Select(context.Background(), Request{Name: "pkg", Mode: ModeDefault})
		if err != nil {
			t.Fatal(err)
		}
		if sel.Version != "1.0.0" || rem.calls != 0 {
			t.Errorf("got %s with %d remote calls, want 1.0.0 and none", sel.Version, rem.calls)
		}
	})

	t.Run("default falls back to remote", func(t *testing.T) {
		r := NewConstraintResolver(local, &memRemote{inv: upstream})
		sel, err := r.Select(context.Background(), Request{Name: "pkg", Ranges: []string{"^1.5.0"}})
		if err != nil {
			t.Fatal(err)
		}
		if sel.Version != "1.5.0" || sel.Source != SourceRemote {
			t.Errorf("got %s from %s, want 1.5.0 from remote", sel.Version, sel.Source)
		}
	})

	t.Run("remote-primary marks local copies local", func(t *testing.T) {
		r := NewConstraintResolver(local, &memRemote{inv: upstream})
		sel, err := r.Select(context.Background(), Request{Name: "pkg", Ranges: []string{"1.0.0"}, Mode: ModeRemotePrimary})
		if err != nil {
			t.Fatal(err)
		}
		if sel.Source != SourceLocal {
			t.Errorf("Source = %s, want local", sel.Source)
		}
	})

	t.Run("local-only never asks remote", func(t *testing.T) {
		rem := &memRemote{inv: upstream}
		r := NewConstraintResolver(local, rem)
		_, err := r.Select(context.Background(), Request{Name: "remote-only", Mode: ModeLocalOnly})
		var nf *NotFoundError
		if !errors.As(err, &nf) || rem.calls != 0 {
			t.Errorf("err = %v, calls = %d; want NotFoundError and no calls", err, rem.calls)
		}
	})

	t.Run("default returns remote failure when nothing is local", func(t *testing.T) {
		fail := &remote.Failure{Name: "remote-only", Reason: remote.ReasonNetwork}
		r := NewConstraintResolver(local, &memRemote{err: fail})
		_, err := r.Select(context.Background(), Request{Name: "remote-only"})
		if remote.ReasonOf(err) != remote.ReasonNetwork {
			t.Errorf("err = %v, want network failure", err)
		}
	})

	t.Run("remote-primary surfaces failure even with local versions", func(t *testing.T) {
		fail := &remote.Failure{Name: "pkg", Reason: remote.ReasonAccessDenied}
		r := NewConstraintResolver(local, &memRemote{err: fail})
		_, err := r.Select(context.Background(), Request{Name: "pkg", Mode: ModeRemotePrimary})
		if remote.ReasonOf(err) != remote.ReasonAccessDenied {
			t.Errorf("err = %v, want access-denied failure", err)
		}
	})

	t.Run("remote-primary without a remote", func(t *testing.T) {
		r := NewConstraintResolver(local, nil)
		_, err := r.Select(context.Background(), Request{Name: "pkg", Mode: ModeRemotePrimary})
		if remote.ReasonOf(err) != remote.ReasonNotFound {
			t.Errorf("err = %v, want not-found failure", err)
		}
	})
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeDefault {
		t.Errorf("ParseMode(\"\") = %q, %v", m, err)
	}
	if _, err := ParseMode("remote-only"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		version string
		ranges  []string
		want    bool
	}{
		{"1.3.0", []string{"^1.0.0 & ^1.2.0"}, true},
		{"1.1.0", []string{"^1.0.0", "^1.2.0"}, false},
		{"unversioned", nil, true},
		{"unversioned", []string{"^1.0.0"}, false},
		{"2.0.0-rc.1", []string{"^2.0.0"}, true},
	}
	for _, tt := range tests {
		if got := Satisfies(tt.version, tt.ranges...); got != tt.want {
			t.Errorf("Satisfies(%s, %v) = %v, want %v", tt.version, tt.ranges, got, tt.want)
		}
	}
}
