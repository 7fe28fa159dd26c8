package search

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"locsearch/internal/index"
	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
)

type node struct {
	name   string
	kind   schema.Kind
	parent string
}

// buildIndex indexes nodes in order. Parents must precede their children.
func buildIndex(t testing.TB, aliases *normalizer.AliasTable, nodes ...node) *index.Index {
	t.Helper()
	b := index.NewBuilder(aliases)
	byID := make(map[string]schema.LocationNode)
	for _, n := range nodes {
		loc := schema.LocationNode{ID: normalizer.Slug(n.name), Name: n.name, Kind: n.kind, ParentID: n.parent}
		var lineage index.Lineage
		switch n.kind {
		case schema.SubRegion:
			lineage.Region = byID["region:"+n.parent]
		case schema.Locality:
			lineage.SubRegion = byID["subregion:"+n.parent]
			lineage.Region = byID["region:"+lineage.SubRegion.ParentID]
		}
		b.Add(loc, lineage)
		byID[loc.Key().String()] = loc
	}
	return b.Snapshot()
}

func testIndex(t testing.TB) *index.Index {
	t.Helper()
	aliases, err := normalizer.NewAliasTable(map[string][]string{"kathmandu": {"ktm"}})
	if err != nil {
		t.Fatalf("NewAliasTable failed: %v", err)
	}
	return buildIndex(t, aliases,
		node{"Koshi", schema.Region, ""},
		node{"Jhapa", schema.SubRegion, "koshi"},
		node{"Birtamod", schema.Locality, "jhapa"},
		node{"Damak", schema.Locality, "jhapa"},
		node{"Ilam", schema.SubRegion, "koshi"},
		node{"Suryodaya", schema.Locality, "ilam"},
		node{"Bagmati", schema.Region, ""},
		node{"Kathmandu", schema.SubRegion, "bagmati"},
		node{"Kathmandu", schema.Locality, "kathmandu"},
		node{"Kirtipur", schema.Locality, "kathmandu"},
		node{"Lalitpur", schema.SubRegion, "bagmati"},
		node{"Godawari", schema.Locality, "lalitpur"},
	)
}

type hit struct {
	key   string
	score float64
	match schema.MatchType
}

func hits(results []schema.MatchResult) []hit {
	out := make([]hit, len(results))
	for i, r := range results {
		out[i] = hit{r.Key().String(), math.Round(r.Score*1000) / 1000, r.MatchType}
	}
	return out
}

func TestSearchStages(t *testing.T) {
	x := testIndex(t)
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name     string
		query    string
		expected []hit
	}{
		{"prefix", "jhap", []hit{
			{"subregion:jhapa", 83, schema.MatchPrefix},
		}},
		{"alias exact", "ktm", []hit{
			{"locality:kathmandu", 100, schema.MatchExact},
			{"subregion:kathmandu", 100, schema.MatchExact},
		}},
		{"prefix by length", "kath", []hit{
			{"locality:kathmandu", 75, schema.MatchPrefix},
			{"subregion:kathmandu", 75, schema.MatchPrefix},
		}},
		{"contains", "pur", []hit{
			{"locality:kirtipur", 60, schema.MatchContains},
			{"subregion:lalitpur", 60, schema.MatchContains},
		}},
		{"fuzzy", "ilan", []hit{
			{"subregion:ilam", 35.625, schema.MatchFuzzy},
		}},
		{"phonetic", "jhpa", []hit{
			{"subregion:jhapa", 50, schema.MatchPhonetic},
		}},
		{"case and padding", "  JHAP ", []hit{
			{"subregion:jhapa", 83, schema.MatchPrefix},
		}},
		{"no match", "zzzz", []hit{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hits(e.Search(x, tt.query))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.expected)
			}
		})
	}
}

func TestSearchKeywordStage(t *testing.T) {
	x := buildIndex(t, nil,
		node{"Gandaki", schema.Region, ""},
		node{"Kaski", schema.SubRegion, "gandaki"},
		node{"Lekhnath Bazar", schema.Locality, "kaski"},
	)

	// too long for fuzzy; matches only through the "baz" and "baza" prefixes
	got := hits(NewEngine(DefaultConfig()).Search(x, "bazaarline"))
	want := []hit{{"locality:lekhnath-bazar", 35, schema.MatchKeyword}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search(bazaarline) = %v, want %v", got, want)
	}
}

func TestExactBeatsFuzzy(t *testing.T) {
	results := NewEngine(DefaultConfig()).Search(testIndex(t), "Ilam")
	if len(results) == 0 {
		t.Fatal("Search(Ilam) returned nothing")
	}
	top := results[0]
	if top.Key().String() != "subregion:ilam" || top.Score != ExactScore || top.MatchType != schema.MatchExact {
		t.Errorf("top result = %+v", hits(results[:1]))
	}
	for _, r := range results[1:] {
		if r.Score >= ExactScore {
			t.Errorf("%s scored %v alongside the exact match", r.Key(), r.Score)
		}
	}
}

func TestBlankQuery(t *testing.T) {
	e := NewEngine(DefaultConfig())
	x := testIndex(t)

	for _, q := range []string{"", " ", "\t", "...", "-"} {
		got := e.Search(x, q)
		if got == nil || len(got) != 0 {
			t.Errorf("Search(%q) = %#v, want empty non-nil slice", q, got)
		}
	}
	if got := e.Search(nil, "koshi"); len(got) != 0 {
		t.Errorf("Search on nil index = %v", got)
	}
}

func TestSingleCharacterNeverFuzzy(t *testing.T) {
	e := NewEngine(DefaultConfig())
	x := testIndex(t)

	for _, q := range []string{"k", "i", "z", "a"} {
		for _, r := range e.Search(x, q) {
			if r.MatchType == schema.MatchFuzzy {
				t.Errorf("Search(%q) produced fuzzy match %s", q, r.Key())
			}
		}
	}
}

func TestFuzzySkippedWhenEnoughResults(t *testing.T) {
	tests := []struct {
		name     string
		towns    []string
		expected schema.MatchType
	}{
		{"four earlier hits", []string{"Milan", "Kilan", "Silan", "Tilan"}, schema.MatchFuzzy},
		{"five earlier hits", []string{"Milan", "Kilan", "Silan", "Tilan", "Dilan"}, schema.MatchKeyword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := []node{{"Koshi", schema.Region, ""}, {"Ilam", schema.SubRegion, "koshi"}}
			for _, town := range tt.towns {
				nodes = append(nodes, node{town, schema.Locality, "ilam"})
			}
			x := buildIndex(t, nil, nodes...)

			for _, r := range NewEngine(DefaultConfig()).Search(x, "ilan") {
				if r.Key().String() == "subregion:ilam" {
					if r.MatchType != tt.expected {
						t.Errorf("ilam matched as %s, want %s", r.MatchType, tt.expected)
					}
					return
				}
			}
			t.Error("ilam not found")
		})
	}
}

func TestResultCap(t *testing.T) {
	nodes := []node{{"Gandaki", schema.Region, ""}, {"Kaski", schema.SubRegion, "gandaki"}}
	for i := 1; i <= 20; i++ {
		nodes = append(nodes, node{fmt.Sprintf("Ward %d", i), schema.Locality, "kaski"})
	}
	x := buildIndex(t, nil, nodes...)

	if got := NewEngine(DefaultConfig()).Search(x, "ward"); len(got) != 12 {
		t.Errorf("Search(ward) returned %d results, want 12", len(got))
	}
	if got := NewEngine(Config{MaxResults: 3}).Search(x, "ward"); len(got) != 3 {
		t.Errorf("Search(ward) with MaxResults 3 returned %d results", len(got))
	}
	if got := NewEngine(DefaultConfig()).Match(x, "ward"); len(got) != 20 {
		t.Errorf("Match(ward) returned %d results, want 20", len(got))
	}
}

func TestMinQueryLength(t *testing.T) {
	e := NewEngine(Config{MinQueryLength: 3})
	x := testIndex(t)

	if got := e.Search(x, "kt"); len(got) != 0 {
		t.Errorf("Search(kt) = %v, want empty below minimum length", hits(got))
	}
	if got := e.Search(x, "ktm"); len(got) == 0 {
		t.Error("Search(ktm) returned nothing")
	}
}

func TestSearchDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	x := testIndex(t)

	for _, q := range []string{"k", "ka", "pur", "ilan", "a"} {
		first := e.Search(x, q)
		for i := 0; i < 5; i++ {
			if again := e.Search(x, q); !reflect.DeepEqual(first, again) {
				t.Fatalf("Search(%q) differs between calls", q)
			}
		}
	}
}

func TestFullPathHierarchy(t *testing.T) {
	x := testIndex(t)
	for _, loc := range x.All() {
		if loc.Kind != schema.Locality {
			continue
		}
		want := loc.Name + ", " + loc.SubRegion + ", " + loc.Region
		if loc.SubRegion == "" || loc.Region == "" || loc.FullPath() != want {
			t.Errorf("%s FullPath = %q, want %q", loc.Key(), loc.FullPath(), want)
		}
	}

	results := NewEngine(DefaultConfig()).Search(x, "kirtipur")
	if len(results) == 0 || results[0].FullPath != "Kirtipur, Kathmandu, Bagmati" {
		t.Errorf("Search(kirtipur) full path = %v", results)
	}
}

func TestSearchWhere(t *testing.T) {
	localities := func(l *schema.IndexedLocation) bool { return l.Kind == schema.Locality }
	got := hits(NewEngine(DefaultConfig()).SearchWhere(testIndex(t), "kathmandu", localities))
	want := []hit{{"locality:kathmandu", 100, schema.MatchExact}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchWhere = %v, want %v", got, want)
	}
}

func TestRank(t *testing.T) {
	loc := func(id, name string, kind schema.Kind) *schema.IndexedLocation {
		return &schema.IndexedLocation{LocationNode: schema.LocationNode{ID: id, Name: name, Kind: kind}}
	}
	results := []schema.MatchResult{
		{Location: loc("b", "beta", schema.Locality), Score: 50},
		{Location: loc("r", "Alpha", schema.Region), Score: 50},
		{Location: loc("a", "Alpha", schema.Locality), Score: 50},
		{Location: loc("z", "zulu", schema.Region), Score: 90},
		{Location: loc("a2", "alpha", schema.Locality), Score: 50},
	}
	Rank(results)

	var got []string
	for _, r := range results {
		got = append(got, r.Location.ID)
	}
	if want := []string{"z", "a", "a2", "b", "r"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Rank order = %v, want %v", got, want)
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected *schema.Highlight
	}{
		{"Kathmandu", "kath", &schema.Highlight{Before: "", Match: "Kath", After: "mandu"}},
		{"Kathmandu", "man", &schema.Highlight{Before: "Kath", Match: "man", After: "du"}},
		{"Birta Mod", "MOD", &schema.Highlight{Before: "Birta ", Match: "Mod", After: ""}},
		{"Belbari Bari", "bari", &schema.Highlight{Before: "Belbari ", Match: "Bari", After: ""}},
		{"Kāthmāndu", "kathm", &schema.Highlight{Before: "", Match: "Kāthm", After: "āndu"}},
		{"Kāthmāndu", "MANDU", &schema.Highlight{Before: "Kāth", Match: "māndu", After: ""}},
		{"Kathmandu", "ktm", nil},
		{"Kathmandu", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.query, func(t *testing.T) {
			got := Highlight(tt.name, tt.query)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Highlight(%q, %q) = %+v, want %+v", tt.name, tt.query, got, tt.expected)
			}
		})
	}
}

func TestResultDecoration(t *testing.T) {
	results := NewEngine(DefaultConfig()).Search(testIndex(t), "kath")
	if len(results) == 0 {
		t.Fatal("Search(kath) returned nothing")
	}
	r := results[0]
	if r.FullPath != "Kathmandu, Kathmandu, Bagmati" {
		t.Errorf("FullPath = %q", r.FullPath)
	}
	if r.Highlight == nil || r.Highlight.Match != "Kath" {
		t.Errorf("Highlight = %+v", r.Highlight)
	}
}

func BenchmarkSearch(b *testing.B) {
	x := testIndex(b)
	e := NewEngine(DefaultConfig())
	queries := []string{"k", "jhap", "ilan", "kathmandu", "pur"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Search(x, queries[i%len(queries)])
	}
}
