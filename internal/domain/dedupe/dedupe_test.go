package dedupe_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/strokelab/courtsync/internal/domain/dedupe"
)

func TestRingDeduper(t *testing.T) {
	Convey("Given a bounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewRingDeduper(dedupe.WithMaxSize(3))

		Convey("When an identity is recorded twice", func() {
			So(d.SeenAndRecord(ctx, "handheld:1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "handheld:1"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("When the capacity is exceeded", func() {
			for i := 0; i < 4; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("handheld:%d", i)), ShouldBeFalse)
			}

			Convey("Then the oldest identity is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "handheld:0"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "handheld:3"), ShouldBeTrue)
			})
		})
	})
}
