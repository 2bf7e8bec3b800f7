package merge

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPendingQueue(t *testing.T) {
	Convey("Given observations pushed out of order", t, func() {
		q := &pendingQueue{}
		q.push(4, 0, observation{date: "d4", value: 40})
		q.push(1, 1, observation{date: "d1", value: 10})
		q.push(4, 2, observation{date: "d4b", value: 41})
		q.push(2, 3, observation{date: "d2", value: 20})

		Convey("Then the smallest offset is at the front", func() {
			So(q.peek(), ShouldEqual, 1)
		})

		Convey("Then same-day entries come out together in input order", func() {
			So(q.popDay(1), ShouldResemble, []observation{{date: "d1", value: 10}})
			So(q.popDay(3), ShouldBeEmpty)
			So(q.popDay(2), ShouldHaveLength, 1)
			So(q.popDay(4), ShouldResemble, []observation{{date: "d4", value: 40}, {date: "d4b", value: 41}})
			So(q.Len(), ShouldEqual, 0)
			So(q.peek(), ShouldEqual, -1)
		})
	})
}
