package shop

import (
	"context"
	"errors"
	"testing"

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

func TestRegister_ExplicitLocation(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	p := types.Point{Lat: 12.97, Lng: 77.59}
	sh, err := svc.Register(context.Background(), RegisterCommand{
		ShopName: "Sharma Kirana", OwnerName: "R. Sharma", Phone: "99", Address: "4th Cross", Location: &p,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := svc.Location(context.Background(), sh.ID)
	if err != nil || got != p {
		t.Fatalf("location = %+v (%v)", got, err)
	}
}

func TestRegister_Geocoded(t *testing.T) {
	geo := &stubGeocoder{point: types.Point{Lat: 19.07, Lng: 72.87}}
	svc := NewService(NewMemoryStore(), geo)
	sh, err := svc.Register(context.Background(), RegisterCommand{
		ShopName: "Patel Stores", OwnerName: "A. Patel", Phone: "98", Address: "Link Road", City: "Mumbai", Pincode: "400050",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if geo.query != "Link Road, Mumbai, 400050" {
		t.Fatalf("geocode query = %q", geo.query)
	}
	if sh.Location == nil || *sh.Location != geo.point {
		t.Fatalf("location = %+v", sh.Location)
	}
}

func TestRegister_GeocodeMissStillRegisters(t *testing.T) {
	svc := NewService(NewMemoryStore(), &stubGeocoder{err: errors.New("no result")})
	sh, err := svc.Register(context.Background(), RegisterCommand{
		ShopName: "a", OwnerName: "b", Phone: "c", Address: "d",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Location(context.Background(), sh.ID); !errors.Is(err, ErrNoLocation) {
		t.Fatalf("err = %v, want ErrNoLocation", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	bad := types.Point{Lat: 0, Lng: 181}
	cases := []RegisterCommand{
		{OwnerName: "b", Phone: "c", Address: "d"},
		{ShopName: "a", Phone: "c", Address: "d"},
		{ShopName: "a", OwnerName: "b", Address: "d"},
		{ShopName: "a", OwnerName: "b", Phone: "c"},
		{ShopName: "a", OwnerName: "b", Phone: "c", Address: "d", Location: &bad},
	}
	for i, cmd := range cases {
		if _, err := svc.Register(context.Background(), cmd); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
