package scanner

import (
	"errors"
	"testing"

	"sigscan/pattern"
	"sigscan/process"
	"sigscan/process_blob"
	"sigscan/resolve"
	"sigscan/search"
)

const moduleBase = process.ProcessMemoryAddress(0x10000000)

// testModule lays out three instruction sites in a zeroed 0x100 byte image:
//
//	0x10  8B 0D 78 56 34 12      mov ecx, [0x12345678]
//	0x40  48 8B 0D 20 00 00 00   mov rcx, [rip+0x20]
//	0xFC  A1 11 22 33            truncated by the end of the image
func testModule() (*process_blob.ProcessBlob, process.ModuleRegion) {
	data := make([]byte, 0x100)
	copy(data[0x10:], []byte{0x8B, 0x0D, 0x78, 0x56, 0x34, 0x12})
	copy(data[0x40:], []byte{0x48, 0x8B, 0x0D, 0x20, 0x00, 0x00, 0x00})
	copy(data[0xFC:], []byte{0xA1, 0x11, 0x22, 0x33})

	region := process.ModuleRegion{Name: "client.dll", Base: moduleBase, Size: 0x100}
	return process_blob.NewProcessBlob(moduleBase, data).AddModule(region), region
}

var (
	noMatch   = Candidate{Pattern: pattern.MustCompile("CC CC CC"), Spec: resolve.Absolute{Displacement: 1, Width: 4}}
	truncated = Candidate{Pattern: pattern.MustCompile("A1 ?? ??"), Spec: resolve.Absolute{Displacement: 1, Width: 4}}
	ripLoad   = Candidate{Pattern: pattern.MustCompile("48 8B 0D ?? ?? ?? ??"), Spec: resolve.Relative{DispOffset: 3, AnchorOffset: 7}}
	absLoad   = Candidate{Pattern: pattern.MustCompile("8B 0D ?? ?? ?? ??"), Spec: resolve.Absolute{Displacement: 2, Width: 4}}
)

func TestScan_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	blob, region := testModule()
	s := NewSession(blob, region)

	tests := []struct {
		name          string
		candidates    []Candidate
		wantCandidate int
		wantAddress   process.ProcessMemoryAddress
		wantMatch     process.ProcessMemoryAddress
	}{
		{
			name:          "skips no match and failed resolution",
			candidates:    []Candidate{noMatch, truncated, ripLoad, absLoad},
			wantCandidate: 2,
			wantAddress:   moduleBase + 0x40 + 7 + 0x20,
			wantMatch:     moduleBase + 0x40,
		},
		{
			name:          "earlier candidate shadows later",
			candidates:    []Candidate{absLoad, ripLoad},
			wantCandidate: 0,
			wantAddress:   0x12345678,
			wantMatch:     moduleBase + 0x10,
		},
		{
			name:          "order decides",
			candidates:    []Candidate{ripLoad, absLoad},
			wantCandidate: 0,
			wantAddress:   moduleBase + 0x40 + 7 + 0x20,
			wantMatch:     moduleBase + 0x40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := s.Scan(Request{Target: "EntityList", Candidates: tt.candidates})
			if !got.Found {
				t.Fatalf("Scan() = %s, want found", got)
			}
			if got.Target != "EntityList" {
				t.Errorf("Target = %q", got.Target)
			}
			if got.Candidate != tt.wantCandidate {
				t.Errorf("Candidate = %d, want %d", got.Candidate, tt.wantCandidate)
			}
			if got.Address != tt.wantAddress {
				t.Errorf("Address = %s, want %s", got.Address.ToString(), tt.wantAddress.ToString())
			}
			if got.Match != tt.wantMatch {
				t.Errorf("Match = %s, want %s", got.Match.ToString(), tt.wantMatch.ToString())
			}
		})
	}
}

func TestScan_NotFound(t *testing.T) {
	t.Parallel()

	blob, region := testModule()
	s := NewSession(blob, region)

	for _, candidates := range [][]Candidate{
		nil,
		{noMatch},
		{noMatch, truncated},
		{{Pattern: absLoad.Pattern, Spec: nil}},
		{{Pattern: absLoad.Pattern, Spec: resolve.Absolute{Displacement: 2, Width: 3}}},
	} {
		got := s.Scan(Request{Target: "ViewMatrix", Candidates: candidates})
		if got.Found || got.Address != 0 {
			t.Errorf("Scan(%d candidates) = %s, want not found", len(candidates), got)
		}
		if got.Target != "ViewMatrix" {
			t.Errorf("Target = %q", got.Target)
		}
	}
}

func TestScan_InvalidSpecOnlyRejectsCandidate(t *testing.T) {
	t.Parallel()

	blob, region := testModule()
	s := NewSession(blob, region)

	bad := Candidate{Pattern: absLoad.Pattern}
	got := s.Scan(Request{Target: "LocalPlayer", Candidates: []Candidate{bad, absLoad}})
	if !got.Found || got.Candidate != 1 || got.Address != 0x12345678 {
		t.Errorf("Scan() = %s", got)
	}
}

func TestScan_RegionBoundsSearch(t *testing.T) {
	t.Parallel()

	blob, region := testModule()
	// the absolute load at 0x10 lies outside this sub-region
	sub := process.ModuleRegion{Name: region.Name, Base: moduleBase + 0x20, Size: 0xE0}
	s := NewSession(blob, sub, WithSearchOptions(search.WithWindowSize(0x20)))

	got := s.Scan(Request{Target: "EntityList", Candidates: []Candidate{absLoad}})
	// 8B 0D inside the rip-relative load at 0x41 is the only match left
	if !got.Found || got.Match != moduleBase+0x41 {
		t.Errorf("Scan() = %s, want match at base+0x41", got)
	}
	if s.Region() != sub {
		t.Errorf("Region() = %s", s.Region())
	}
}

func TestScanAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	blob, region := testModule()

	reqs := []Request{
		{Target: "EntityList", Candidates: []Candidate{absLoad}},
		{Target: "LocalPlayer", Candidates: []Candidate{noMatch}},
		{Target: "ViewMatrix", Candidates: []Candidate{truncated, ripLoad}},
		{Target: "GlowObject", Candidates: []Candidate{noMatch, absLoad}},
		{Target: "Input", Candidates: nil},
	}

	sequential := NewSession(blob, region).ScanAll(reqs)
	parallel := NewSession(blob, region, WithParallelism(4)).ScanAll(reqs)

	if len(sequential) != len(reqs) || len(parallel) != len(reqs) {
		t.Fatalf("got %d and %d reports, want %d", len(sequential), len(parallel), len(reqs))
	}
	for i := range reqs {
		if sequential[i] != parallel[i] {
			t.Errorf("report %d: sequential %s, parallel %s", i, sequential[i], parallel[i])
		}
		if parallel[i].Target != reqs[i].Target {
			t.Errorf("report %d: Target = %q, want %q", i, parallel[i].Target, reqs[i].Target)
		}
	}

	wantFound := []bool{true, false, true, true, false}
	for i, want := range wantFound {
		if parallel[i].Found != want {
			t.Errorf("%s: Found = %v, want %v", reqs[i].Target, parallel[i].Found, want)
		}
	}
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	req, err := NewRequest("EntityList",
		CandidateText{Pattern: "8B 0D ?? ?? ?? ??", Spec: resolve.Absolute{Displacement: 2, Width: 4}},
		CandidateText{Pattern: "8B 0D ZZ", Spec: resolve.Absolute{Displacement: 2, Width: 4}},
		CandidateText{Pattern: "48 8B 0D ?? ?? ?? ??", Spec: resolve.Relative{DispOffset: 3, AnchorOffset: 7}},
	)

	if !errors.Is(err, pattern.ErrCompile) {
		t.Fatalf("err = %v, want a compile error", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error %T is not *RequestError", err)
	}
	if _, ok := reqErr.Errs[1]; !ok || len(reqErr.Errs) != 1 {
		t.Errorf("Errs = %v, want only candidate 1", reqErr.Errs)
	}

	if req.Target != "EntityList" || len(req.Candidates) != 2 {
		t.Fatalf("Request = %+v", req)
	}
	if req.Candidates[1].Pattern.String() != "48 8B 0D ?? ?? ?? ??" {
		t.Errorf("second candidate = %s", req.Candidates[1].Pattern)
	}

	// the surviving candidates still scan
	blob, region := testModule()
	if got := NewSession(blob, region).Scan(req); !got.Found || got.Address != 0x12345678 {
		t.Errorf("Scan() = %s", got)
	}
}

func TestNewRequest_AllValid(t *testing.T) {
	t.Parallel()

	req, err := NewRequest("LocalPlayer", CandidateText{Pattern: "A1 ?? ?? ?? ??", Spec: resolve.Absolute{Displacement: 1, Width: 4}})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if len(req.Candidates) != 1 {
		t.Errorf("Candidates = %d, want 1", len(req.Candidates))
	}
}
