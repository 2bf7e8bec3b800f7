package merge_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/okian/csvmerge/internal/domain/merge"
	. "github.com/smartystreets/goconvey/convey"
)

func mustParams(start, end string, n int) merge.Params {
	p, err := merge.ParseParams(start, end, fmt.Sprint(n))
	if err != nil {
		panic(err)
	}
	return p
}

func lagOf(r merge.Row) any {
	if r.Lag == nil {
		return nil
	}
	return *r.Lag
}

func TestMerger_Example(t *testing.T) {
	Convey("Given one company with two daily values and a one day lag", t, func() {
		m := merge.New()
		directory := [][]string{{"A", "Acme"}}
		daily := [][]string{{"A", "3/1/20", "10"}, {"A", "3/3/20", "15"}}

		res, err := m.Merge(context.Background(), daily, directory, mustParams("3/1/20", "3/3/20", 1))

		Convey("Then the missing day is zero filled and lags are differenced", func() {
			So(err, ShouldBeNil)
			So(res.Rows, ShouldHaveLength, 3)

			So(res.Rows[0].Fields(), ShouldResemble, []string{"Acme", "3/1/20", "10", ""})
			So(res.Rows[1].Fields(), ShouldResemble, []string{"Acme", "3/2/20", "0", "-10"})
			So(res.Rows[2].Fields(), ShouldResemble, []string{"Acme", "3/3/20", "15", "15"})

			So(lagOf(res.Rows[0]), ShouldBeNil)
			So(lagOf(res.Rows[1]), ShouldEqual, int64(-10))
		})

		Convey("And the stats describe the inputs", func() {
			So(res.Stats.Entities, ShouldEqual, 1)
			So(res.Stats.Days, ShouldEqual, 3)
			So(res.Stats.Rows, ShouldEqual, 3)
			So(res.Stats.Observations, ShouldEqual, 2)
		})
	})
}

func TestMerger_Ordering(t *testing.T) {
	Convey("Given several companies listed out of order", t, func() {
		m := merge.New(merge.WithParallelism(2))
		directory := [][]string{{"c", "Zed"}, {"a", "Yak"}, {"b", "Xylo"}}
		daily := [][]string{
			{"b", "1/2/21", "4"},
			{"c", "1/1/21", "7"},
			{"a", "1/3/21", "1"},
		}

		res, err := m.Merge(context.Background(), daily, directory, mustParams("1/1/21", "1/3/21", 2))

		Convey("Then rows are grouped by company id, not name, and dated ascending", func() {
			So(err, ShouldBeNil)
			So(res.Rows, ShouldHaveLength, 9)

			var ids []string
			for i, r := range res.Rows {
				ids = append(ids, r.EntityID)
				So(r.Date, ShouldEqual, fmt.Sprintf("1/%d/21", i%3+1))
			}
			So(ids, ShouldResemble, []string{"a", "a", "a", "b", "b", "b", "c", "c", "c"})
			So(res.Rows[0].Name, ShouldEqual, "Yak")
		})

		Convey("And companies without daily rows still get a full zero run", func() {
			directory = append(directory, []string{"d", "Empty"})
			res, err := m.Merge(context.Background(), daily, directory, mustParams("1/1/21", "1/3/21", 2))
			So(err, ShouldBeNil)
			tail := res.Rows[9:]
			So(tail, ShouldHaveLength, 3)
			for _, r := range tail {
				So(r.Value, ShouldEqual, 0)
				So(r.Name, ShouldEqual, "Empty")
			}
			So(lagOf(tail[2]), ShouldEqual, int64(0))
		})
	})
}

func TestMerger_Window(t *testing.T) {
	Convey("Given daily rows on both sides of the window", t, func() {
		m := merge.New()
		directory := [][]string{{"A", "Acme"}}
		daily := [][]string{
			{"A", "2/29/20", "100"},
			{"A", "3/2/20", "5"},
			{"A", "3/4/20", "200"},
		}

		res, err := m.Merge(context.Background(), daily, directory, mustParams("3/1/20", "3/3/20", 1))

		Convey("Then out-of-window rows neither appear nor influence lags", func() {
			So(err, ShouldBeNil)
			So(res.Rows, ShouldHaveLength, 3)
			So(res.Rows[0].Value, ShouldEqual, 0)
			So(lagOf(res.Rows[0]), ShouldBeNil)
			So(res.Rows[1].Value, ShouldEqual, 5)
			So(res.Rows[2].Value, ShouldEqual, 0)
			So(lagOf(res.Rows[2]), ShouldEqual, int64(-5))
			So(res.Stats.OutOfWindow, ShouldEqual, 2)
		})
	})

	Convey("Given a single day window crossing nothing", t, func() {
		res, err := merge.New().Merge(context.Background(), nil, [][]string{{"A", "Acme"}}, mustParams("12/31/19", "12/31/19", 0))

		Convey("Then one zero row with a zero lag is produced", func() {
			So(err, ShouldBeNil)
			So(res.Rows, ShouldHaveLength, 1)
			So(res.Rows[0].Fields(), ShouldResemble, []string{"Acme", "12/31/19", "0", "0"})
		})
	})

	Convey("Given a window across a leap day and a year boundary", t, func() {
		res, err := merge.New().Merge(context.Background(), nil, [][]string{{"A", "Acme"}}, mustParams("12/30/19", "3/1/20", 0))

		Convey("Then every calendar day is present once", func() {
			So(err, ShouldBeNil)
			So(res.Rows, ShouldHaveLength, 63)
			So(res.Rows[2].Date, ShouldEqual, "1/1/20")
			So(res.Rows[61].Date, ShouldEqual, "2/29/20")
		})
	})

	Convey("Given a window longer than the configured cap", t, func() {
		m := merge.New(merge.WithMaxWindowDays(10))
		_, err := m.Merge(context.Background(), nil, [][]string{{"A", "Acme"}}, mustParams("1/1/20", "1/11/20", 0))

		Convey("Then the merge is rejected", func() {
			So(errors.Is(err, merge.ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(err, merge.ErrWindow), ShouldBeTrue)
		})
	})
}

func TestMerger_Validation(t *testing.T) {
	Convey("Given malformed inputs", t, func() {
		m := merge.New()
		ctx := context.Background()
		p := mustParams("3/1/20", "3/3/20", 1)

		Convey("When a companies row has one field", func() {
			_, err := m.Merge(ctx, nil, [][]string{{"A", "Acme"}, {"B"}}, p)
			So(errors.Is(err, merge.ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(err, merge.ErrDirectoryRow), ShouldBeTrue)

			var ie *merge.InputError
			So(errors.As(err, &ie), ShouldBeTrue)
			So(ie.Field, ShouldEqual, "companies")
			So(ie.Row, ShouldEqual, 2)
		})

		Convey("When a daily row has the wrong field count", func() {
			_, err := m.Merge(ctx, [][]string{{"A", "3/1/20"}}, [][]string{{"A", "Acme"}}, p)
			So(errors.Is(err, merge.ErrDailyRow), ShouldBeTrue)
		})

		Convey("When a daily row has a bad date, even outside the window", func() {
			_, err := m.Merge(ctx, [][]string{{"A", "2020-03-01", "1"}}, [][]string{{"A", "Acme"}}, p)
			So(errors.Is(err, merge.ErrDailyRow), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "row 1")
		})

		Convey("When a daily value is not an integer", func() {
			_, err := m.Merge(ctx, [][]string{{"A", "3/1/20", "1.5"}}, [][]string{{"A", "Acme"}}, p)
			So(errors.Is(err, merge.ErrDailyRow), ShouldBeTrue)
		})
	})
}

func TestMerger_UnknownEntities(t *testing.T) {
	Convey("Given daily rows for a company missing from the directory", t, func() {
		directory := [][]string{{"A", "Acme"}}
		daily := [][]string{{"A", "3/1/20", "1"}, {"X", "3/1/20", "9"}}
		p := mustParams("3/1/20", "3/2/20", 1)

		Convey("When the merger is lenient", func() {
			res, err := merge.New().Merge(context.Background(), daily, directory, p)

			Convey("Then the rows are ignored and counted", func() {
				So(err, ShouldBeNil)
				So(res.Rows, ShouldHaveLength, 2)
				So(res.Stats.UnknownEntity, ShouldEqual, 1)
				for _, r := range res.Rows {
					So(r.EntityID, ShouldEqual, "A")
				}
			})
		})

		Convey("When the merger is strict", func() {
			_, err := merge.New(merge.WithStrictEntities(true)).Merge(context.Background(), daily, directory, p)

			Convey("Then the merge fails", func() {
				So(errors.Is(err, merge.ErrUnknownEntity), ShouldBeTrue)
				So(errors.Is(err, merge.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestMerger_Duplicates(t *testing.T) {
	Convey("Given two rows for the same company and date", t, func() {
		directory := [][]string{{"A", "Acme"}}
		daily := [][]string{{"A", "3/1/20", "3"}, {"A", "3/2/20", "1"}, {"A", "03/01/20", "4"}}
		p := mustParams("3/1/20", "3/2/20", 1)

		run := func(policy merge.DuplicatePolicy) merge.Result {
			res, err := merge.New(merge.WithDuplicatePolicy(policy)).Merge(context.Background(), daily, directory, p)
			So(err, ShouldBeNil)
			return res
		}

		Convey("Then keep-first uses the first row and later days are unaffected", func() {
			res := run(merge.KeepFirst)
			So(res.Rows[0].Value, ShouldEqual, 3)
			So(res.Rows[0].Date, ShouldEqual, "3/1/20")
			So(res.Rows[1].Value, ShouldEqual, 1)
			So(res.Stats.Duplicates, ShouldEqual, 1)
		})

		Convey("Then keep-last uses the last row and its own date text", func() {
			res := run(merge.KeepLast)
			So(res.Rows[0].Value, ShouldEqual, 4)
			So(res.Rows[0].Date, ShouldEqual, "03/01/20")
		})

		Convey("Then sum adds the values", func() {
			res := run(merge.Sum)
			So(res.Rows[0].Value, ShouldEqual, 7)
			So(lagOf(res.Rows[1]), ShouldEqual, int64(-6))
		})
	})
}

func TestMerger_Properties(t *testing.T) {
	Convey("Given random sparse inputs", t, func() {
		rng := rand.New(rand.NewSource(7))
		p := mustParams("1/1/21", "2/15/21", 5)
		days := p.Days()

		var directory [][]string
		for i := 0; i < 12; i++ {
			directory = append(directory, []string{fmt.Sprintf("id-%02d", rng.Intn(100)), fmt.Sprintf("name-%d", i)})
		}
		var daily [][]string
		want := map[string]int64{}
		for i := 0; i < 300; i++ {
			id := directory[rng.Intn(len(directory))][0]
			d := p.StartDate.AddDate(0, 0, rng.Intn(days+20)-10)
			key := id + "|" + merge.FormatDate(d)
			if _, dup := want[key]; dup {
				continue
			}
			v := rng.Int63n(1000) - 500
			want[key] = v
			daily = append(daily, []string{id, merge.FormatDate(d), fmt.Sprint(v)})
		}

		res, err := merge.New(merge.WithParallelism(3)).Merge(context.Background(), daily, directory, p)
		So(err, ShouldBeNil)

		entities := map[string]bool{}
		for _, d := range directory {
			entities[d[0]] = true
		}

		Convey("Then the row count is entities times days", func() {
			So(res.Rows, ShouldHaveLength, len(entities)*days)
		})

		Convey("Then rows are sorted by id and each id has one row per day", func() {
			So(sort.SliceIsSorted(res.Rows, func(i, j int) bool {
				return res.Rows[i].EntityID < res.Rows[j].EntityID
			}), ShouldBeTrue)
			for i, r := range res.Rows {
				So(r.Date, ShouldEqual, merge.FormatDate(p.StartDate.AddDate(0, 0, i%days)))
			}
		})

		Convey("Then values are observed or zero and lags follow the definition", func() {
			for i, r := range res.Rows {
				d := i % days
				So(r.Value, ShouldEqual, want[r.EntityID+"|"+r.Date])
				if d < p.Lag {
					So(r.Lag, ShouldBeNil)
				} else {
					So(*r.Lag, ShouldEqual, r.Value-res.Rows[i-p.Lag].Value)
				}
			}
		})

		Convey("Then merging again gives the same result", func() {
			again, err := merge.New().Merge(context.Background(), daily, directory, p)
			So(err, ShouldBeNil)
			So(again.Rows, ShouldResemble, res.Rows)
		})
	})
}

func TestMerger_Cancelled(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := merge.New().Merge(ctx, nil, [][]string{{"A", "Acme"}}, mustParams("1/1/20", "1/2/20", 0))

		Convey("Then the merge reports the cancellation", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
