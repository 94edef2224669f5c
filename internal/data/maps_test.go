package data

import (
	"testing"

	"github.com/rockfall/arena/internal/world"
)

func TestParseMapTable(t *testing.T) {
	tbl, err := ParseMapTable([]byte(`
maps:
  - name: classic
    width: 480
    height: 640
  - name: wide
    width: 800
    height: 600
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Count() != 2 {
		t.Fatalf("count = %d", tbl.Count())
	}
	if got := tbl.Arena("wide"); got != (world.Arena{Width: 800, Height: 600}) {
		t.Fatalf("wide = %+v", got)
	}
	if got := tbl.Arena("nowhere"); got != world.DefaultArena {
		t.Fatalf("unknown map = %+v, want default", got)
	}
}

func TestParseMapTableRejectsTinyArena(t *testing.T) {
	if _, err := ParseMapTable([]byte("maps:\n  - name: x\n    width: 10\n    height: 640\n")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNilTableUsesDefault(t *testing.T) {
	var tbl *MapTable
	if tbl.Arena("classic") != world.DefaultArena {
		t.Fatalf("nil table should return default arena")
	}
}
