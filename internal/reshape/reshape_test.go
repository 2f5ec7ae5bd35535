package reshape

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"covidlens/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const confirmedCSV = `Province/State,Country/Region,Lat,Long,1/1/21,1/2/21
,Spain,40.4,-3.7,10,12
Ontario,Canada,51.2,-85.3,5,7
Quebec,Canada,52.9,-73.5,3,4
`

func TestReshape_PivotsAndSumsSubdivisions(t *testing.T) {
	wt, err := ReadWide(strings.NewReader(confirmedCSV))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := Reshape(wt, model.Confirmed)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	want := []model.LongRecord{
		{Country: "Canada", Date: day(2021, 1, 1), Value: 8},
		{Country: "Canada", Date: day(2021, 1, 2), Value: 11},
		{Country: "Spain", Date: day(2021, 1, 1), Value: 10},
		{Country: "Spain", Date: day(2021, 1, 2), Value: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestReshape_EmptyCellCountsAsZero(t *testing.T) {
	wt := WideTable{
		Header: []string{"Country/Region", "2021-01-01"},
		Rows:   [][]string{{"Chile", ""}, {"Chile", "4"}},
	}
	got, err := Reshape(wt, model.Recovered)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	if len(got) != 1 || got[0].Value != 4 {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestReshape_MalformedInputIsFatal(t *testing.T) {
	cases := map[string]WideTable{
		"bad date header": {
			Header: []string{"Country/Region", "yesterday"},
			Rows:   [][]string{{"Spain", "1"}},
		},
		"bad value": {
			Header: []string{"Country/Region", "1/1/21"},
			Rows:   [][]string{{"Spain", "many"}},
		},
		"fractional value": {
			Header: []string{"Country/Region", "1/1/21"},
			Rows:   [][]string{{"Spain", "1.5"}},
		},
		"negative value": {
			Header: []string{"Country/Region", "1/1/21"},
			Rows:   [][]string{{"Spain", "-3"}},
		},
		"no country column": {
			Header: []string{"Nation", "1/1/21"},
			Rows:   [][]string{{"Spain", "3"}},
		},
		"ragged row": {
			Header: []string{"Country/Region", "1/1/21", "1/2/21"},
			Rows:   [][]string{{"Spain", "3"}},
		},
	}
	for name, wt := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Reshape(wt, model.Deaths); !errors.Is(err, model.ErrMalformedInput) {
				t.Fatalf("err=%v want ErrMalformedInput", err)
			}
		})
	}
}

func TestReshape_IntegralFloatAccepted(t *testing.T) {
	wt := WideTable{
		Header: []string{"Country", "1/1/21"},
		Rows:   [][]string{{"Peru", "12.0"}},
	}
	got, err := Reshape(wt, model.Confirmed)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	if got[0].Value != 12 {
		t.Fatalf("value=%d want 12", got[0].Value)
	}
}

func TestParseDate_Layouts(t *testing.T) {
	for _, s := range []string{"1/22/20", "01/22/2020", "2020-01-22"} {
		d, err := ParseDate(s)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if !d.Equal(day(2020, 1, 22)) {
			t.Fatalf("%s parsed as %v", s, d)
		}
	}
}

func TestReadWide_Errors(t *testing.T) {
	if _, err := ReadWide(strings.NewReader("")); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("empty: err=%v", err)
	}
	if _, err := ReadWide(strings.NewReader("a,b\n1,2,3\n")); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("ragged: err=%v", err)
	}
}
