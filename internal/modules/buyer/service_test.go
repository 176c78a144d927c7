package buyer

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kirana/internal/infra"
	"kirana/internal/types"
)

type stubGeocoder struct {
	point types.Point
	err   error
	query string
}

func (g *stubGeocoder) Geocode(_ context.Context, address string) (types.Point, error) {
	g.query = address
	return g.point, g.err
}

func TestRegister_Geocoded(t *testing.T) {
	geo := &stubGeocoder{point: types.Point{Lat: 12.97, Lng: 77.64}}
	svc := NewService(NewMemoryStore(), geo)
	b, err := svc.Register(context.Background(), RegisterCommand{
		FullName: "Asha Rao", Phone: "9845000000", Address: "12 CMH Road", City: "Bengaluru",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if geo.query != "12 CMH Road, Bengaluru" {
		t.Fatalf("geocode query = %q", geo.query)
	}
	if b.Location == nil || *b.Location != geo.point {
		t.Fatalf("location = %+v", b.Location)
	}
	got, err := svc.Get(context.Background(), b.ID)
	if err != nil || got.FullName != "Asha Rao" {
		t.Fatalf("get = %+v (%v)", got, err)
	}
}

func TestRegister_GeocodeMissStillRegisters(t *testing.T) {
	svc := NewService(NewMemoryStore(), &stubGeocoder{err: errors.New("no result")})
	b, err := svc.Register(context.Background(), RegisterCommand{FullName: "a", Phone: "b", Address: "c"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if b.Location != nil {
		t.Fatalf("location = %+v, want none", b.Location)
	}
}

func TestRegister_Validation(t *testing.T) {
	bad := types.Point{Lat: 95}
	cases := []struct {
		name string
		cmd  RegisterCommand
	}{
		{"missing name", RegisterCommand{Phone: "1", Address: "x"}},
		{"missing phone", RegisterCommand{FullName: "a", Address: "x"}},
		{"missing address", RegisterCommand{FullName: "a", Phone: "1"}},
		{"bad location", RegisterCommand{FullName: "a", Phone: "1", Address: "x", Location: &bad}},
	}
	svc := NewService(NewMemoryStore(), nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.cmd); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestList_NewestFirst(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	first, _ := svc.Register(context.Background(), RegisterCommand{FullName: "a", Phone: "1", Address: "x"})
	second, _ := svc.Register(context.Background(), RegisterCommand{FullName: "b", Phone: "2", Address: "y"})

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("order = %+v", list)
	}
	if _, err := svc.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("KIRANA_TEST_DSN")
	if dsn == "" {
		t.Skip("KIRANA_TEST_DSN not set; skipping DB-backed tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := infra.Migrate(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE buyers"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	svc := NewService(NewStore(db), nil)
	p := types.Point{Lat: 12.97, Lng: 77.64}
	b, err := svc.Register(ctx, RegisterCommand{FullName: "Asha", Phone: "1", Address: "x", Location: &p})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location == nil || *got.Location != p {
		t.Fatalf("location = %+v", got.Location)
	}
	if _, err := svc.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
