package main

import (
	"context"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/strokelab/courtsync/internal/app"
	"github.com/strokelab/courtsync/internal/config"
	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration is loaded from the environment", func() {
			_ = os.Setenv("COURTSYNC_ADDR", ":8080")
			_ = os.Setenv("COURTSYNC_DEVICE", "vision")
			_ = os.Setenv("COURTSYNC_SAMPLE_QUEUE_SIZE", "1000")
			defer func() {
				_ = os.Unsetenv("COURTSYNC_ADDR")
				_ = os.Unsetenv("COURTSYNC_DEVICE")
				_ = os.Unsetenv("COURTSYNC_SAMPLE_QUEUE_SIZE")
			}()

			convey.Convey("Then the overrides apply", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Device, convey.ShouldEqual, "vision")
				convey.So(cfg.SampleQueueSize, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When no peer link is configured", func() {
			cfg := config.New(context.Background())
			cfg.PeerWSURL = ""
			cfg.MQTTBroker = ""

			link, closeLink, err := dialLink(context.Background(), cfg, clocksync.NewMonotonicClock())
			defer closeLink()

			convey.Convey("Then exchanges report the missing link", func() {
				convey.So(err, convey.ShouldBeNil)
				_, exErr := link.Exchange(context.Background(), clocksync.Request{})
				convey.So(exErr, convey.ShouldEqual, errNoPeerLink)
			})
		})

		convey.Convey("When the service is built with custom options", func() {
			svc := app.New(
				app.WithQueueSize(2000),
				app.WithDedupeSize(1000),
			)

			convey.So(svc, convey.ShouldNotBeNil)
		})
	})
}
