package sk_test

import (
	"errors"
	"reflect"
	"testing"

	"snapkeep/internal/sk"
	"snapkeep/internal/testutil"
)

func TestLoadSnapshots(t *testing.T) {
	b := testutil.NewMemoryBackend()
	b.AddDir("/backup/home/20240110-000000-000")
	b.AddDir("/backup/home/20240102-120000-500")
	b.AddDir("/backup/home/20240105-000000-000")
	b.AddDir("/backup/home/current")
	b.AddDir("/backup/home/log")
	b.AddDir("/backup/home/20231201-000000-000.expired")
	b.AddFile("/backup/home/last", testutil.FixedClock().Now())
	b.AddFile("/backup/home/20240111-000000-000", testutil.FixedClock().Now())

	tests := []struct {
		name        string
		suffix      string
		wantNames   []string
		wantPaths   []string
		wantExpired bool
	}{
		{
			name:      "snapshots only, ascending",
			suffix:    "",
			wantNames: []string{"20240102-120000-500", "20240105-000000-000", "20240110-000000-000"},
			wantPaths: []string{
				"/backup/home/20240102-120000-500",
				"/backup/home/20240105-000000-000",
				"/backup/home/20240110-000000-000",
			},
		},
		{
			name:        "expired entries",
			suffix:      sk.ExpiredSuffix,
			wantNames:   []string{"20231201-000000-000"},
			wantPaths:   []string{"/backup/home/20231201-000000-000.expired"},
			wantExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := sk.LoadSnapshots(b, "/backup/home", tt.suffix)
			if err != nil {
				t.Fatalf("LoadSnapshots() error = %v", err)
			}
			if got := names(snaps); !reflect.DeepEqual(got, tt.wantNames) {
				t.Errorf("names = %v, want %v", got, tt.wantNames)
			}
			var paths []string
			for _, s := range snaps {
				paths = append(paths, s.Path)
				if s.Expired != tt.wantExpired {
					t.Errorf("%s Expired = %v, want %v", s.Path, s.Expired, tt.wantExpired)
				}
			}
			if !reflect.DeepEqual(paths, tt.wantPaths) {
				t.Errorf("paths = %v, want %v", paths, tt.wantPaths)
			}
		})
	}
}

func TestLoadSnapshots_ListError(t *testing.T) {
	b := testutil.NewMemoryBackend()
	b.AddDir("/backup/home")
	b.ListErrors["/backup/home"] = errors.New("permission denied")

	if _, err := sk.LoadSnapshots(b, "/backup/home", ""); err == nil {
		t.Fatal("LoadSnapshots() error = nil, want listing error")
	}
}

func TestLoadSnapshots_Empty(t *testing.T) {
	b := testutil.NewMemoryBackend()
	b.AddDir("/backup/home/current")

	snaps, err := sk.LoadSnapshots(b, "/backup/home", "")
	if err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("LoadSnapshots() = %v, want none", names(snaps))
	}
}
