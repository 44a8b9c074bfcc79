package thumbnails

import "testing"

func TestThumbName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"widget.png", "widget_thumb.png"},
		{"nested/widget.jpeg", "nested/widget_thumb.jpeg"},
		{"no-extension", "no-extension_thumb"},
		{"dot.less.name.png", "dot.less.name_thumb.png"},
	}
	for _, tc := range cases {
		if got := ThumbName(tc.in); got != tc.want {
			t.Fatalf("ThumbName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestThumbNameIsDeterministic(t *testing.T) {
	t.Parallel()

	first := ThumbName("widget.png")
	for i := 0; i < 5; i++ {
		if got := ThumbName("widget.png"); got != first {
			t.Fatalf("expected stable derivation, got %q then %q", first, got)
		}
	}
}

func TestIsThumb(t *testing.T) {
	t.Parallel()

	if !IsThumb("widget_thumb.png") {
		t.Fatal("expected widget_thumb.png to be recognized as a thumbnail")
	}
	if IsThumb("widget.png") {
		t.Fatal("widget.png is not a thumbnail")
	}
	if !IsThumb(ThumbName("anything.gif")) {
		t.Fatal("derived names must be recognized")
	}
}

func TestThumbURLPreservesQuery(t *testing.T) {
	t.Parallel()

	in := "https://store.example/media/widget.png?sig=abc"
	want := "https://store.example/media/widget_thumb.png?sig=abc"
	if got := ThumbURL(in); got != want {
		t.Fatalf("ThumbURL(%q) = %q, want %q", in, got, want)
	}
}
