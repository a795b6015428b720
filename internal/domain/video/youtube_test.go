package video

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExtractYouTubeID(t *testing.T) {
	Convey("ExtractYouTubeID", t, func() {
		for _, raw := range []string{
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ",
			"https://youtu.be/dQw4w9WgXcQ?t=12",
			"https://www.youtube.com/embed/dQw4w9WgXcQ",
			"https://youtube.com/shorts/dQw4w9WgXcQ",
		} {
			id, err := ExtractYouTubeID(raw)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "dQw4w9WgXcQ")
		}

		Convey("Non-YouTube URL fails", func() {
			_, err := ExtractYouTubeID("https://example.com/video")
			So(err, ShouldEqual, ErrNoYouTubeID)
		})
	})
}

func TestNormalizeYouTubeURL(t *testing.T) {
	Convey("NormalizeYouTubeURL", t, func() {
		want := "https://www.youtube.com/watch?v=abc12345678&t=30"

		Convey("Short link with start time", func() {
			So(NormalizeYouTubeURL("https://youtu.be/abc12345678?t=30"), ShouldEqual, want)
		})

		Convey("Watch link with tracking parameter", func() {
			So(NormalizeYouTubeURL("https://www.youtube.com/watch?v=abc12345678&si=TRACKING&t=30"), ShouldEqual, want)
		})

		Convey("Embed link without parameters", func() {
			So(NormalizeYouTubeURL("https://www.youtube.com/embed/abc12345678?feature=oembed"), ShouldEqual,
				"https://www.youtube.com/watch?v=abc12345678")
		})

		Convey("Unrecognised input is returned unchanged", func() {
			So(NormalizeYouTubeURL("https://cdn.example.com/a.mp4"), ShouldEqual, "https://cdn.example.com/a.mp4")
		})
	})
}

func TestEmbedURL(t *testing.T) {
	Convey("EmbedURL", t, func() {
		So(EmbedURL("abc12345678", 0), ShouldEqual, "https://www.youtube-nocookie.com/embed/abc12345678?enablejsapi=1&rel=0")
		So(EmbedURL("abc12345678", 45), ShouldEndWith, "&start=45")
	})
}
