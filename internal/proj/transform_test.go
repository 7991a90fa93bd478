package proj

import (
	"math"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"", KindLocal, false},
		{"local", KindLocal, false},
		{"LOCAL", KindLocal, false},
		{"3857", KindWebMercator, false},
		{"EPSG:3857", KindWebMercator, false},
		{"epsg:3857", KindWebMercator, false},
		{"4326", "", true},
		{"utm", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLocalDistances(t *testing.T) {
	// Amsterdam
	l := NewLocal(52.37, 4.89)

	origin := l.Project(4.89, 52.37)
	if origin[0] != 0 || origin[1] != 0 {
		t.Errorf("origin projects to %v, want [0 0]", origin)
	}

	// 0.001 degrees of latitude is about 111 m everywhere
	north := l.Project(4.89, 52.371)
	if math.Abs(north[0]) > 1e-9 || math.Abs(north[1]-111.32) > 0.01 {
		t.Errorf("north = %v, want [0 ~111.32]", north)
	}

	// a degree of longitude shrinks with cos(lat)
	east := l.Project(4.891, 52.37)
	want := 111.32 * math.Cos(52.37*math.Pi/180)
	if math.Abs(east[0]-want) > 0.01 || math.Abs(east[1]) > 1e-9 {
		t.Errorf("east = %v, want [~%.2f 0]", east, want)
	}
}

func TestLocalRoundTrip(t *testing.T) {
	l := NewLocal(-33.86, 151.21)
	lon, lat := l.Unproject(l.Project(151.25, -33.9))
	if math.Abs(lon-151.25) > 1e-9 || math.Abs(lat+33.9) > 1e-9 {
		t.Errorf("round trip = %v,%v, want 151.25,-33.9", lon, lat)
	}

	gotLat, gotLon := l.Origin()
	if gotLat != -33.86 || gotLon != 151.21 {
		t.Errorf("Origin() = %v,%v", gotLat, gotLon)
	}
}

func TestWebMercator(t *testing.T) {
	var m WebMercator

	p := m.Project(0, 0)
	if math.Abs(p[0]) > 1e-6 || math.Abs(p[1]) > 1e-6 {
		t.Errorf("Project(0,0) = %v, want [0 0]", p)
	}

	p = m.Project(180, 0)
	if math.Abs(p[0]-20037508.342789244) > 1e-3 {
		t.Errorf("Project(180,0).X = %v, want 20037508.34", p[0])
	}

	if m.SRID() != SRID3857 {
		t.Errorf("SRID() = %d, want %d", m.SRID(), SRID3857)
	}
}

func TestNew(t *testing.T) {
	p, err := New(KindLocal, 10, 20)
	if err != nil {
		t.Fatalf("New(local) error = %v", err)
	}
	if p.SRID() != SRIDLocal {
		t.Errorf("local SRID = %d, want %d", p.SRID(), SRIDLocal)
	}

	p, err = New(KindWebMercator, 0, 0)
	if err != nil {
		t.Fatalf("New(3857) error = %v", err)
	}
	if _, ok := p.(WebMercator); !ok {
		t.Errorf("New(3857) = %T, want WebMercator", p)
	}

	if _, err := New("bogus", 0, 0); err == nil {
		t.Error("New(bogus) expected error")
	}
}
